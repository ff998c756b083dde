package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/signature-validator-go/pkg/digest"
	"github.com/Layr-Labs/signature-validator-go/pkg/encoding"
	"github.com/Layr-Labs/signature-validator-go/pkg/types"
)

// handleValidate handles the /v1/validate endpoint
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	var req types.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	encoded, err := encodeRequestParams(&req)
	if err != nil {
		s.writeValidationError(w, r, err)
		return
	}

	if err := s.verifier.ValidateSignature(r.Context(), encoded, req.Nonce, req.Signature); err != nil {
		s.logger.Sugar().Infow("Validation rejected", "request_id", requestID, "error", err)
		s.writeValidationError(w, r, err)
		return
	}

	// Both already succeeded inside ValidateSignature, so neither can fail here
	nonce, _ := types.NewNonce(req.Nonce)
	signer, _ := s.verifier.RecoverSigner(digest.BuildDigest(encoded, &nonce), req.Signature)

	s.logger.Sugar().Infow("Validation accepted", "request_id", requestID, "signer", signer.Hex())
	s.writeJSON(w, r, http.StatusOK, types.ValidateResponse{
		Valid:  true,
		Signer: signer,
		Nonce:  nonce,
	})
}

// handleAuthority handles the /v1/authority endpoint
func (s *Server) handleAuthority(w http.ResponseWriter, r *http.Request) {
	var req types.AuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	ok, err := s.verifier.IsSignedByAuthority(r.Context(), req.Digest, req.Signature)
	if err != nil {
		s.logger.Sugar().Errorw("Authority check failed", "request_id", requestIDFrom(r.Context()), "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, "Validator set unavailable")
		return
	}

	s.writeJSON(w, r, http.StatusOK, types.AuthorityResponse{SignedByAuthority: ok})
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ledger := s.verifier.Ledger()
	if err := ledger.HealthCheck(); err != nil {
		s.logger.Sugar().Warnw("Health check failed", "error", err)
		s.writeJSON(w, r, http.StatusServiceUnavailable, types.HealthResponse{Status: "unhealthy"})
		return
	}

	count, err := ledger.CountConsumedNonces(r.Context())
	if err != nil {
		s.logger.Sugar().Warnw("Failed to count consumed nonces", "error", err)
		s.writeJSON(w, r, http.StatusServiceUnavailable, types.HealthResponse{Status: "unhealthy"})
		return
	}

	s.writeJSON(w, r, http.StatusOK, types.HealthResponse{Status: "ok", ConsumedNonces: count})
}

// encodeRequestParams returns the packed parameter bytes of a validate request. Exactly one of
// params or encodedParams must be present.
func encodeRequestParams(req *types.ValidateRequest) ([]byte, error) {
	hasParams := req.Params != nil
	hasEncoded := req.EncodedParams != nil

	switch {
	case hasParams && hasEncoded:
		return nil, fmt.Errorf("%w: params and encodedParams are mutually exclusive", types.ErrInvalidValue)
	case hasEncoded:
		return req.EncodedParams, nil
	case !hasParams:
		return nil, fmt.Errorf("%w: params or encodedParams is required", types.ErrInvalidValue)
	}

	params := make(encoding.ParameterList, 0, len(req.Params))
	for i, p := range req.Params {
		tv, err := encoding.ParseJSON(p.Type, p.Value)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		params = append(params, tv)
	}
	return encoding.Encode(params), nil
}

// statusForError maps the verifier error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidValue), errors.Is(err, types.ErrInvalidNonceLength):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrNonceAlreadyUsed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Validation failed", "request_id", requestIDFrom(r.Context()), "error", err)
		msg = "Internal error"
	}
	s.writeError(w, r, status, msg)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, types.ErrorResponse{
		Error:     msg,
		RequestID: requestIDFrom(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "request_id", requestIDFrom(r.Context()), "error", err)
	}
}
