package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/polisai/polis-cipher/pkg/cipher"
	"github.com/polisai/polis-cipher/pkg/domain"
	"github.com/polisai/polis-cipher/pkg/policy"
	"github.com/polisai/polis-cipher/pkg/telemetry"
)

// maxBodyOverhead leaves room for JSON framing and the other request fields.
const maxBodyOverhead = 4096

// maxEscapedRuneBytes is the longest JSON encoding of one rune: a surrogate
// pair written as two \uXXXX escapes.
const maxEscapedRuneBytes = 12

func (s *Server) handleCodec(op domain.Operation) http.HandlerFunc {
	direction := cipher.Forward
	if op == domain.OperationDecode {
		direction = cipher.Inverse
	}

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cfg, filter := s.snapshot()

		var req domain.CodecRequest
		body := http.MaxBytesReader(w, r.Body, int64(cfg.Server.MaxMessageLength)*maxEscapedRuneBytes+maxBodyOverhead)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, r, domain.ErrMessageTooLarge)
				return
			}
			s.writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrBadRequest, err))
			return
		}

		length := utf8.RuneCountInString(req.Message)
		ctx, span := telemetry.StartCodecSpan(r.Context(), string(op), length)
		defer span.End()

		keySource := "inline"
		key := req.Key
		switch {
		case req.Key != "" && req.KeyID != "":
			s.writeError(w, r, fmt.Errorf("%w: set either key or key_id, not both", domain.ErrBadRequest))
			return
		case req.KeyID != "":
			keySource = "stored"
			stored, err := s.keys.Get(ctx, req.KeyID)
			if err != nil {
				s.finishOperation(r, op, keySource, telemetry.OutcomeError, 0, start)
				s.writeError(w, r, err)
				return
			}
			key = stored.Value
		}

		codec, err := cipher.New(key)
		if err != nil {
			s.finishOperation(r, op, keySource, telemetry.OutcomeInvalidKey, 0, start)
			s.writeError(w, r, err)
			return
		}

		decision, err := filter.Evaluate(ctx, policy.Input{
			Operation:     op,
			MessageLength: length,
			KeyLength:     len(codec.Key()),
			KeyID:         req.KeyID,
			Client:        clientHost(r.RemoteAddr),
			Limits:        policy.Limits{MaxMessageLength: cfg.Server.MaxMessageLength},
		})
		if err != nil {
			s.finishOperation(r, op, keySource, telemetry.OutcomeError, 0, start)
			s.writeError(w, r, fmt.Errorf("evaluate policy: %w", err))
			return
		}
		s.metrics.RecordPolicyDecision(string(decision.Action))
		telemetry.RecordPolicyDecision(span, !decision.Allowed(), decision.Reason)
		if !decision.Allowed() {
			s.finishOperation(r, op, keySource, telemetry.OutcomeDenied, 0, start)
			if length > cfg.Server.MaxMessageLength {
				s.writeError(w, r, domain.NewError(domain.CodeMessageTooLarge, domain.ErrMessageTooLarge, decision.Reason))
				return
			}
			s.writeError(w, r, domain.NewError(domain.CodePolicyDenied, domain.ErrPolicyDenied, decision.Reason))
			return
		}

		output := codec.Transform(req.Message, direction)
		s.finishOperation(r, op, keySource, telemetry.OutcomeSuccess, length, start)

		writeJSON(w, http.StatusOK, domain.CodecResult{
			Operation: op,
			Output:    output,
			KeyID:     req.KeyID,
			RequestID: RequestIDFromContext(r.Context()),
		})
	}
}

// clientHost drops the ephemeral port so policy input and its decision cache
// key stay stable across connections from the same client.
func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func (s *Server) finishOperation(r *http.Request, op domain.Operation, keySource string, outcome telemetry.Outcome, characters int, start time.Time) {
	duration := time.Since(start)
	s.metrics.RecordOperation(string(op), string(outcome), characters, duration)
	telemetry.RecordCodecMetrics(r.Context(), telemetry.CodecMetrics{
		Operation:  string(op),
		KeySource:  keySource,
		Outcome:    outcome,
		Characters: characters,
		Duration:   duration,
	})
	s.logger.Debug("Codec operation finished",
		"request_id", RequestIDFromContext(r.Context()),
		"operation", op,
		"key_source", keySource,
		"outcome", outcome,
		"characters", characters,
		"duration", duration,
	)
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	cfg, _ := s.snapshot()

	var req domain.KeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyOverhead)).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode body: %v", domain.ErrBadRequest, err))
		return
	}
	if req.Name == "" {
		s.writeError(w, r, fmt.Errorf("%w: name is required", domain.ErrBadRequest))
		return
	}
	length := req.Length
	if length == 0 {
		length = cfg.KeyGen.Length
	}
	if length < 0 || length > cfg.Server.MaxMessageLength {
		s.writeError(w, r, fmt.Errorf("%w: length must be between 1 and %d", domain.ErrBadRequest, cfg.Server.MaxMessageLength))
		return
	}

	value, err := s.generator.Generate(length)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("generate key: %w", err))
		return
	}

	stored, err := s.keys.Put(r.Context(), req.Name, value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.refreshKeyGauge(r.Context())

	s.logger.Info("Key created", "request_id", RequestIDFromContext(r.Context()), "key_id", stored.ID, "name", stored.Name)
	writeJSON(w, http.StatusCreated, domain.KeyResponse{ID: stored.ID, Name: stored.Name, Key: stored.Value})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.keys.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.keys.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.refreshKeyGauge(r.Context())

	s.logger.Info("Key deleted", "request_id", RequestIDFromContext(r.Context()), "key_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps err onto a status code and the JSON error model.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		message = "internal error"
	}

	writeJSON(w, status, domain.ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func classify(err error) (int, string) {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code != "" {
		return statusForCode(de.Code), de.Code
	}

	switch {
	case errors.Is(err, cipher.ErrInvalidKey):
		return http.StatusBadRequest, domain.CodeInvalidKey
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, domain.CodeBadRequest
	case errors.Is(err, domain.ErrKeyNotFound):
		return http.StatusNotFound, domain.CodeKeyNotFound
	case errors.Is(err, domain.ErrPolicyDenied):
		return http.StatusForbidden, domain.CodePolicyDenied
	case errors.Is(err, domain.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge, domain.CodeMessageTooLarge
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.CodeRateLimited
	default:
		return http.StatusInternalServerError, domain.CodeInternal
	}
}

func statusForCode(code string) int {
	switch code {
	case domain.CodeInvalidKey, domain.CodeBadRequest:
		return http.StatusBadRequest
	case domain.CodeKeyNotFound:
		return http.StatusNotFound
	case domain.CodePolicyDenied:
		return http.StatusForbidden
	case domain.CodeMessageTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
