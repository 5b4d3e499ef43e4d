package dto

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	bigAmountRe  = regexp.MustCompile(`^[0-9]{1,78}$`)
	hexBytesRe   = regexp.MustCompile(`^(0x)?[0-9a-fA-F]+$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("eth_addr", validateEthAddr)
		_ = v.RegisterValidation("big_amount", validateBigAmount)
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("hex_bytes", validateHexBytes)
	}
}

// validateEthAddr accepts a 20-byte 0x-prefixed hex address.
func validateEthAddr(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// validateBigAmount accepts a positive base-10 integer. 78 digits covers the
// full uint256 range.
func validateBigAmount(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !bigAmountRe.MatchString(s) {
		return false
	}
	_, ok := ParseAmount(s)
	return ok
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateHexBytes accepts hex-encoded bytes with or without a 0x prefix.
func validateHexBytes(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return hexBytesRe.MatchString(s) && len(s)%2 == 0
}
