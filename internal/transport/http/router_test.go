package httptransport

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/internal/compliance"
	"github.com/kevanbtc/cleargate/internal/courtorder"
	"github.com/kevanbtc/cleargate/internal/custody"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/policy"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/internal/settlement"
)

const (
	testChainID = 31337
	testJWTKey  = "test-signing-key"
)

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	signer   *claims.Signer
	verifier *claims.Verifier
	subject  common.Address
	token    common.Address
}

func (s *RouterSuite) SetupTest() {
	s.subject = common.HexToAddress("0x1111111111111111111111111111111111111111")
	s.token = common.HexToAddress("0x2222222222222222222222222222222222222222")

	key, err := ethcrypto.GenerateKey()
	s.Require().NoError(err)
	s.signer = claims.NewSignerFromKey(key, testChainID)

	s.verifier = claims.NewVerifier(testChainID)
	s.verifier.AuthorizeSigner(claims.KindAttestation, s.signer.Address())
	s.verifier.AuthorizeSigner(claims.KindReceipt, s.signer.Address())

	roles := rbac.NewAuthorizer()
	roles.Grant(rbac.RoleAdmin, "admin")
	roles.Grant(rbac.RoleGovernor, "gov")
	roles.Grant(rbac.RoleCompliance, "officer")
	roles.Grant(rbac.RoleCourt, "court")

	guard := replay.NewInMemory()
	auditor, err := audit.NewPublisher(audit.NewInMemoryStore())
	s.Require().NoError(err)

	profileStore := compliance.NewInMemoryStore()
	complianceSvc, err := compliance.NewService(profileStore, s.verifier, guard, roles, auditor, nil, nil)
	s.Require().NoError(err)
	custodySvc, err := custody.NewService(custody.NewInMemoryStore(), s.verifier, guard, auditor, nil, nil)
	s.Require().NoError(err)

	orders := courtorder.NewRegistry(roles, auditor, nil)
	gate := policy.NewGate(profileStore, orders, roles, policy.WithAuditor(auditor))

	rails := settlement.NewRegistry()
	rail, err := settlement.NewService("swift", settlement.NewInMemoryStore(), settlement.ExternalExecutor{},
		s.verifier, guard, roles, auditor, nil, nil)
	s.Require().NoError(err)
	s.Require().NoError(rails.Register(rail))

	controller, err := courtorder.NewController(orders, settlement.NewCourtLedger(rail), roles, auditor, nil)
	s.Require().NoError(err)

	handler := NewHandler(complianceSvc, custodySvc, gate, orders, controller, rails, s.verifier, roles, auditor, nil)
	s.router = NewRouter(handler, testJWTKey)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) bearer(principal string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": principal})
	signed, err := token.SignedString([]byte(testJWTKey))
	s.Require().NoError(err)
	return "Bearer " + signed
}

func (s *RouterSuite) do(method, path string, body any, principal string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set("Authorization", s.bearer(principal))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) submitAttestation(nonce uint64) {
	claim := claims.AttestationClaim{
		Profile: domain.Profile{
			Subject:     s.subject,
			KYC:         true,
			Accredited:  true,
			CountryCode: 840,
			ExpiresAt:   time.Now().Add(24 * time.Hour),
		},
		Env: claims.Envelope{Nonce: nonce, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}
	sig, err := s.signer.Sign(claim)
	s.Require().NoError(err)

	body := map[string]any{
		"profile": map[string]any{
			"subject":      s.subject.Hex(),
			"kyc":          true,
			"accredited":   true,
			"country_code": 840,
			"expires_at":   claim.Profile.ExpiresAt.Unix(),
		},
		"nonce":      nonce,
		"issued_at":  claim.Env.IssuedAt.Unix(),
		"expires_at": claim.Env.ExpiresAt.Unix(),
		"signature":  "0x" + hex.EncodeToString(sig),
	}
	rec := s.do(http.MethodPost, "/v1/claims/attestation", body, "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestAttestationRoundtrip() {
	s.submitAttestation(1)

	rec := s.do(http.MethodGet, fmt.Sprintf("/v1/compliance/%s", s.subject.Hex()), nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp complianceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Compliant)
	s.True(resp.CanHold)
}

func (s *RouterSuite) TestReplayMapsToConflict() {
	s.submitAttestation(1)

	claim := claims.AttestationClaim{
		Profile: domain.Profile{Subject: s.subject, KYC: true, ExpiresAt: time.Now().Add(time.Hour)},
		Env:     claims.Envelope{Nonce: 1, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)},
	}
	sig, err := s.signer.Sign(claim)
	s.Require().NoError(err)

	body := map[string]any{
		"profile": map[string]any{
			"subject":    s.subject.Hex(),
			"kyc":        true,
			"expires_at": claim.Profile.ExpiresAt.Unix(),
		},
		"nonce":      1,
		"issued_at":  claim.Env.IssuedAt.Unix(),
		"expires_at": claim.Env.ExpiresAt.Unix(),
		"signature":  "0x" + hex.EncodeToString(sig),
	}
	rec := s.do(http.MethodPost, "/v1/claims/attestation", body, "")
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *RouterSuite) TestPolicyCheck() {
	s.submitAttestation(1)

	body := map[string]any{
		"op":      "TRANSFER",
		"subject": s.subject.Hex(),
		"token":   s.token.Hex(),
	}
	rec := s.do(http.MethodPost, "/v1/policy/check", body, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var decision policy.Decision
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decision))
	s.True(decision.Allowed)

	s.Run("denial is still a 200", func() {
		body["subject"] = "0x9999999999999999999999999999999999999999"
		rec := s.do(http.MethodPost, "/v1/policy/check", body, "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var decision policy.Decision
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decision))
		s.False(decision.Allowed)
		s.Equal(policy.ReasonNotCompliant, decision.Reason)
	})

	s.Run("invalid op is a 400", func() {
		body["op"] = "TELEPORT"
		rec := s.do(http.MethodPost, "/v1/policy/check", body, "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *RouterSuite) TestTransferLifecycle() {
	transfer := map[string]any{
		"rail":   "swift",
		"asset":  s.token.Hex(),
		"from":   s.subject.Hex(),
		"to":     "0x3333333333333333333333333333333333333333",
		"amount": "1000",
	}

	rec := s.do(http.MethodPost, "/v1/transfers/prepare", transfer, "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var prepared prepareResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &prepared))
	s.Equal("PREPARED", prepared.Status)

	s.Run("duplicate prepare conflicts", func() {
		rec := s.do(http.MethodPost, "/v1/transfers/prepare", transfer, "")
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("release requires the operator role", func() {
		rec := s.do(http.MethodPost, "/v1/transfers/release", transfer, "")
		s.Equal(http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodPost, "/v1/transfers/release", transfer, "admin")
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	})

	s.Run("status endpoint reflects the transition", func() {
		rec := s.do(http.MethodGet, "/v1/transfers/swift/"+prepared.TransferID, nil, "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var status prepareResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &status))
		s.Equal("RELEASED", status.Status)
	})

	s.Run("unknown rail is a 404", func() {
		transfer["rail"] = "sepa"
		rec := s.do(http.MethodPost, "/v1/transfers/prepare", transfer, "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *RouterSuite) TestOrderLifecycle() {
	order := map[string]any{
		"id":      "0x" + fmt.Sprintf("%064d", 1),
		"subject": s.subject.Hex(),
		"token":   s.token.Hex(),
		"action":  "FREEZE",
	}

	s.Run("filing requires the COURT role", func() {
		rec := s.do(http.MethodPost, "/v1/orders/", order, "")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	rec := s.do(http.MethodPost, "/v1/orders/", order, "court")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	s.Run("frozen subject fails the gate", func() {
		s.submitAttestation(1)

		body := map[string]any{
			"op":      "TRANSFER",
			"subject": s.subject.Hex(),
			"token":   s.token.Hex(),
		}
		rec := s.do(http.MethodPost, "/v1/policy/check", body, "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var decision policy.Decision
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decision))
		s.Equal(policy.ReasonFrozen, decision.Reason)
	})
}

func (s *RouterSuite) TestAdminSurface() {
	s.Run("pause requires ADMIN", func() {
		rec := s.do(http.MethodPost, "/v1/admin/pause", map[string]any{"paused": true}, "")
		s.Equal(http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodPost, "/v1/admin/pause", map[string]any{"paused": true}, "admin")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("policy replacement requires GOVERNOR", func() {
		body := map[string]any{"version": 1, "pro_only": true}
		rec := s.do(http.MethodPut, "/v1/admin/policy", body, "admin")
		s.Equal(http.StatusForbidden, rec.Code)

		rec = s.do(http.MethodPut, "/v1/admin/policy", body, "gov")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("signer governance", func() {
		addr := "0x4444444444444444444444444444444444444444"
		body := map[string]any{"kind": string(claims.KindNAVReport), "signer": addr}

		rec := s.do(http.MethodPost, "/v1/admin/signers", body, "admin")
		s.Require().Equal(http.StatusNoContent, rec.Code)
		s.True(s.verifier.Authorized(claims.KindNAVReport, common.HexToAddress(addr)))

		rec = s.do(http.MethodDelete, "/v1/admin/signers", body, "admin")
		s.Require().Equal(http.StatusNoContent, rec.Code)
		s.False(s.verifier.Authorized(claims.KindNAVReport, common.HexToAddress(addr)))
	})

	s.Run("invalid bearer token rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/pause", bytes.NewBufferString(`{"paused":false}`))
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}
