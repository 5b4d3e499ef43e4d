package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"settlement-vault/internal/adapter/http/dto"
	"settlement-vault/internal/adapter/http/middleware"
	"settlement-vault/internal/core/domain"
	"settlement-vault/internal/core/ports"
	"settlement-vault/internal/core/ports/mocks"
	"settlement-vault/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testCallerAddr    = "0x1111111111111111111111111111111111111111"
	testRecipientAddr = "0x7777777777777777777777777777777777777777"
)

func authedContext(t *testing.T, w *httptest.ResponseRecorder, method, path string, body any) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxCaller, common.HexToAddress(testCallerAddr))
	return c
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data envelope: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	caller := common.HexToAddress(testCallerAddr)
	expiry := time.Now().Add(time.Hour)
	sig := "0x" + strings.Repeat("ab", 65)
	mockAuth.EXPECT().Login(gomock.Any(), caller, int64(1700000000), sig).Return("token-abc", expiry, nil)

	body, _ := json.Marshal(dto.LoginRequest{Address: testCallerAddr, IssuedAt: 1700000000, Signature: sig})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "token-abc", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_InvalidSignatureRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	caller := common.HexToAddress(testCallerAddr)
	sig := "0x" + strings.Repeat("cd", 65)
	mockAuth.EXPECT().Login(gomock.Any(), caller, int64(1700000000), sig).
		Return("", time.Time{}, apperror.ErrInvalidToken())

	body, _ := json.Marshal(dto.LoginRequest{Address: testCallerAddr, IssuedAt: 1700000000, Signature: sig})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_002")
}

func TestLogin_BadAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		bytes.NewReader([]byte(`{"address":"nope","issued_at":1,"signature":"ab"}`)))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Vault Handler Tests ---

func TestInitialize_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	vault := &domain.Vault{
		ID:               vaultID,
		Owner:            common.HexToAddress(testCallerAddr),
		LocalDomain:      1,
		PrincipalBalance: big.NewInt(0),
		FeeBalance:       big.NewInt(0),
		Initialized:      true,
	}
	mockSvc.EXPECT().Initialize(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.InitializeRequest) (*domain.Vault, error) {
			assert.Equal(t, vaultID, req.VaultID)
			assert.Equal(t, common.HexToAddress(testCallerAddr), req.Caller)
			assert.Equal(t, domain.Selector(1), req.LocalDomain)
			assert.Equal(t, []domain.Selector{42, 137}, req.AllowlistedDomains)
			return vault, nil
		})

	req := dto.InitializeRequest{
		Account:            "0x3333333333333333333333333333333333333333",
		PaymentController:  "0x2222222222222222222222222222222222222222",
		PrincipalAsset:     "0x4444444444444444444444444444444444444444",
		FeeAsset:           "0x5555555555555555555555555555555555555555",
		Router:             "0x6666666666666666666666666666666666666666",
		LocalDomain:        1,
		AllowlistedDomains: []uint64{42, 137},
	}

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/initialize", req)

	h.Initialize(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, vaultID.String(), data["id"])
	assert.Equal(t, true, data["initialized"])
}

func TestInitialize_AlreadyInitialized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, uuid.New())

	mockSvc.EXPECT().Initialize(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAlreadyInitialized())

	req := dto.InitializeRequest{
		Account:           "0x3333333333333333333333333333333333333333",
		PaymentController: "0x2222222222222222222222222222222222222222",
		PrincipalAsset:    "0x4444444444444444444444444444444444444444",
		FeeAsset:          "0x5555555555555555555555555555555555555555",
		Router:            "0x6666666666666666666666666666666666666666",
		LocalDomain:       1,
	}

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/initialize", req)

	h.Initialize(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "VLT_002")
}

func TestDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		VaultID:   vaultID,
		EntryType: domain.EntryTypeDeposit,
		Balance:   domain.BalancePrincipal,
		Amount:    big.NewInt(1000),
		Status:    domain.EntryStatusSuccess,
	}
	mockSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.DepositRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, domain.BalancePrincipal, req.Balance)
			assert.Equal(t, big.NewInt(1000), req.Amount)
			return entry, nil
		})

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/deposit",
		dto.DepositRequest{Balance: "PRINCIPAL", Amount: "1000"})

	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "1000", data["amount"])
	assert.Equal(t, "DEPOSIT", data["entry_type"])
}

func TestDeposit_InvalidBalanceKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewVaultHandler(mocks.NewMockVaultService(ctrl), uuid.New())

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/deposit",
		dto.DepositRequest{Balance: "SAVINGS", Amount: "1000"})

	h.Deposit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPay_RemoteSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	fee := big.NewInt(5)
	msgID := common.HexToHash("0xabc123")
	entry := &domain.LedgerEntry{
		ID:                uuid.New(),
		VaultID:           vaultID,
		EntryType:         domain.EntryTypePay,
		Balance:           domain.BalancePrincipal,
		Amount:            big.NewInt(100),
		Counterparty:      common.HexToAddress(testRecipientAddr),
		DestinationDomain: 42,
		RelayFee:          fee,
		RelayMessageID:    &msgID,
		Status:            domain.EntryStatusSuccess,
	}
	mockSvc.EXPECT().Pay(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.PayRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, domain.Selector(42), req.DestinationDomain)
			assert.Equal(t, common.HexToAddress(testRecipientAddr), req.Recipient)
			assert.Equal(t, "inv-7", req.ReferenceID)
			return entry, nil
		})

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/pay", dto.PayRequest{
		Amount:            "100",
		Recipient:         testRecipientAddr,
		DestinationDomain: 42,
		ReferenceID:       "inv-7",
	})

	h.Pay(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "5", data["relay_fee"])
	assert.Equal(t, msgID.Hex(), data["relay_message_id"])
}

func TestPay_DomainNotAllowlisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, uuid.New())

	mockSvc.EXPECT().Pay(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDomainNotAllowlisted(99))

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/pay", dto.PayRequest{
		Amount:            "100",
		Recipient:         testRecipientAddr,
		DestinationDomain: 99,
	})

	h.Pay(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "VLT_004")
}

func TestPay_MissingAuthContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewVaultHandler(mocks.NewMockVaultService(ctrl), uuid.New())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.PayRequest{Amount: "100", Recipient: testRecipientAddr, DestinationDomain: 42})
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/vault/pay", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Pay(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, uuid.New())

	mockSvc.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientBalance("fee"))

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/withdraw",
		dto.WithdrawRequest{Balance: "FEE", Amount: "999"})

	h.Withdraw(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "VLT_005")
}

func TestSetAllowlisted_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	mockSvc.EXPECT().SetAllowlisted(gomock.Any(), ports.AllowlistRequest{
		Caller:  common.HexToAddress(testCallerAddr),
		VaultID: vaultID,
		Domain:  42,
		Allowed: true,
	}).Return(nil)

	allowed := true
	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/allowlist",
		dto.AllowlistRequest{Domain: 42, Allowed: &allowed})

	h.SetAllowlisted(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAllowlist_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	mockSvc.EXPECT().ListAllowlisted(gomock.Any(), vaultID).Return([]domain.Selector{42, 137}, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/vault/allowlist", nil)

	h.GetAllowlist(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, []interface{}{float64(42), float64(137)}, data["domains"])
}

func TestPause_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	mockSvc.EXPECT().SetPaused(gomock.Any(), common.HexToAddress(testCallerAddr), vaultID, true).Return(nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/pause", nil)

	h.Pause(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransferOwnership_NonOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, uuid.New())

	mockSvc.EXPECT().TransferOwnership(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(apperror.ErrUnauthorized("owner"))

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodPost, "/api/v1/vault/transfer-ownership",
		dto.TransferOwnershipRequest{NewOwner: testRecipientAddr})

	h.TransferOwnership(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_001")
}

func TestGetVault_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	vault := &domain.Vault{
		ID:               vaultID,
		Owner:            common.HexToAddress(testCallerAddr),
		LocalDomain:      1,
		PrincipalBalance: big.NewInt(500),
		FeeBalance:       big.NewInt(25),
		Initialized:      true,
	}
	mockSvc.EXPECT().GetVault(gomock.Any(), vaultID).Return(vault, nil)
	mockSvc.EXPECT().ListAllowlisted(gomock.Any(), vaultID).Return([]domain.Selector{42}, nil)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/vault", nil)

	h.GetVault(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "500", data["principal_balance"])
	assert.Equal(t, "25", data["fee_balance"])
	assert.Equal(t, []interface{}{float64(42)}, data["allowlisted_domains"])
}

func TestGetVault_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	mockSvc.EXPECT().GetVault(gomock.Any(), vaultID).Return(nil, apperror.ErrVaultNotFound())

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/vault", nil)

	h.GetVault(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "VLT_009")
}

func TestListEntries_TypeFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vaultID := uuid.New()
	mockSvc := mocks.NewMockVaultService(ctrl)
	h := NewVaultHandler(mockSvc, vaultID)

	entries := []domain.LedgerEntry{{
		ID:        uuid.New(),
		VaultID:   vaultID,
		EntryType: domain.EntryTypePay,
		Balance:   domain.BalancePrincipal,
		Amount:    big.NewInt(10),
		Status:    domain.EntryStatusSuccess,
	}}
	mockSvc.EXPECT().ListEntries(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
			require.NotNil(t, params.Type)
			assert.Equal(t, domain.EntryTypePay, *params.Type)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			return entries, 11, nil
		})

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/vault/entries?type=PAY&page=2&page_size=10", nil)

	h.ListEntries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(11), data["total"])
}

func TestListEntries_UnknownType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewVaultHandler(mocks.NewMockVaultService(ctrl), uuid.New())

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/api/v1/vault/entries?type=REFUND", nil)

	h.ListEntries(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(failingChecker{})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestHealthCheck_Healthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck()(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

type failingChecker struct{}

func (failingChecker) Ping(context.Context) error { return errors.New("connection refused") }
func (failingChecker) Name() string               { return "postgresql" }
