package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/domain"
)

type attestationRequest struct {
	Profile struct {
		Subject     string `json:"subject"`
		KYC         bool   `json:"kyc"`
		KYB         bool   `json:"kyb"`
		Accredited  bool   `json:"accredited"`
		PEP         bool   `json:"pep"`
		Sanctioned  bool   `json:"sanctioned"`
		RiskTier    uint8  `json:"risk_tier"`
		CountryCode uint16 `json:"country_code"`
		ExpiresAt   int64  `json:"expires_at"`
		MetadataRef string `json:"metadata_ref"`
	} `json:"profile"`
	envelopeRequest
}

type claimResponse struct {
	Signer string `json:"signer"`
}

func (h *Handler) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	var req attestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	subject, err := parseAddress("profile.subject", req.Profile.Subject)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var metadataRef common.Hash
	if req.Profile.MetadataRef != "" {
		if metadataRef, err = parseHash("profile.metadata_ref", req.Profile.MetadataRef); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	sig, err := parseHexBytes("signature", req.Signature)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	claim := claims.AttestationClaim{
		Profile: domain.Profile{
			Subject:     subject,
			KYC:         req.Profile.KYC,
			KYB:         req.Profile.KYB,
			Accredited:  req.Profile.Accredited,
			PEP:         req.Profile.PEP,
			Sanctioned:  req.Profile.Sanctioned,
			RiskTier:    req.Profile.RiskTier,
			CountryCode: req.Profile.CountryCode,
			ExpiresAt:   parseUnix(req.Profile.ExpiresAt),
			MetadataRef: metadataRef,
		},
		Env: claims.Envelope{
			Nonce:     req.Nonce,
			IssuedAt:  parseUnix(req.IssuedAt),
			ExpiresAt: parseUnix(req.ExpiresAt),
		},
	}

	signer, err := h.compliance.SubmitAttestation(r.Context(), claim, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Signer: signer.Hex()})
}

type navRequest struct {
	Vault      string `json:"vault"`
	Value      string `json:"value"`
	ReportedAt int64  `json:"reported_at"`
	envelopeRequest
}

func (h *Handler) handleSubmitNAV(w http.ResponseWriter, r *http.Request) {
	var req navRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	value, err := parseBig("value", req.Value)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sig, err := parseHexBytes("signature", req.Signature)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	claim := claims.NAVClaim{
		Vault:      vault,
		Value:      value,
		ReportedAt: parseUnix(req.ReportedAt),
		Env: claims.Envelope{
			Nonce:     req.Nonce,
			IssuedAt:  parseUnix(req.IssuedAt),
			ExpiresAt: parseUnix(req.ExpiresAt),
		},
	}

	signer, err := h.custody.SubmitReport(r.Context(), claim, sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Signer: signer.Hex()})
}
