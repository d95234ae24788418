package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/idempotency"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	nextRoute            = "/sessions/{sessionId}/next"
	maxRequestBody       = 64 << 10
)

// Server is the HTTP adapter over the onboarding service.
type Server struct {
	Onboarding *onboarding.Service
	Catalog    *onboarding.CoverageCatalog
	Options    domain.OptionLists
	Idem       idempotency.Store

	log *slog.Logger
}

func NewServer(svc *onboarding.Service, catalog *onboarding.CoverageCatalog, idem idempotency.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Onboarding: svc,
		Catalog:    catalog,
		Options:    domain.DefaultOptionLists(),
		Idem:       idem,
		log:        logger,
	}
}

func (s *Server) GetOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Options)
}

func (s *Server) ListCoverages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CoveragesResponse{Coverages: s.Catalog.Options(r.Context())})
}

func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.Onboarding.Start(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+string(v.ID))
	writeJSON(w, http.StatusCreated, SessionResponse{Session: sessionFromView(v)})
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.Onboarding.Get(r.Context(), sessionID(r))
	s.respondSession(w, r, v, err)
}

func (s *Server) ChangeClientType(w http.ResponseWriter, r *http.Request) {
	var body ClientTypeRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ct := domain.ClientTypeUnset
	if body.ClientType != nil {
		ct = domain.ClientType(strings.ToUpper(strings.TrimSpace(*body.ClientType)))
	}
	v, err := s.Onboarding.ChangeClientType(r.Context(), sessionID(r), ct)
	s.respondSession(w, r, v, err)
}

func (s *Server) ChangeField(w http.ResponseWriter, r *http.Request) {
	var body FieldRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid field change", map[string]any{"name": "must be non-empty"})
		return
	}
	kind := onboarding.InputKind(strings.ToLower(strings.TrimSpace(body.Kind)))
	switch kind {
	case "":
		kind = onboarding.InputText
	case onboarding.InputText, onboarding.InputCheckbox, onboarding.InputNumber, onboarding.InputDate:
	default:
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid field change", map[string]any{"kind": "must be text, checkbox, number or date"})
		return
	}
	v, err := s.Onboarding.ChangeField(r.Context(), sessionID(r), onboarding.Input{
		Name:  body.Name,
		Value: body.Value,
		Kind:  kind,
	})
	s.respondSession(w, r, v, err)
}

func (s *Server) ChangeCoverages(w http.ResponseWriter, r *http.Request) {
	var body CoveragesRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ids := make([]domain.CoverageID, 0, len(body.SelectedCoverageIds))
	for _, id := range body.SelectedCoverageIds {
		ids = append(ids, domain.CoverageID(id))
	}
	v, err := s.Onboarding.ChangeCoverages(r.Context(), sessionID(r), ids)
	s.respondSession(w, r, v, err)
}

func (s *Server) ChangeContractPeriod(w http.ResponseWriter, r *http.Request) {
	var body ContractPeriodRequest
	if !decodeBody(w, r, &body) {
		return
	}
	v, err := s.Onboarding.ChangeContractPeriod(r.Context(), sessionID(r), domain.ContractPeriod(strings.TrimSpace(body.ContractPeriod)))
	s.respondSession(w, r, v, err)
}

func (s *Server) Previous(w http.ResponseWriter, r *http.Request) {
	v, err := s.Onboarding.Previous(r.Context(), sessionID(r))
	s.respondSession(w, r, v, err)
}

func (s *Server) Done(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := s.Onboarding.Done(ctx, sessionID(r))
	if err == nil && s.Idem != nil {
		// A completed session rejects Next, so its replays are dead weight.
		if ferr := s.Idem.Forget(ctx, v.ID); ferr != nil {
			s.log.WarnContext(ctx, "step replays not dropped", slog.String("session_id", string(v.ID)), slog.Any("err", ferr))
		}
	}
	s.respondSession(w, r, v, err)
}

// Next submits the current step. Validation and remote failures come back as 200 with
// an outcome and the session's errorMessage; only protocol problems are HTTP errors.
//
// With an Idempotency-Key header, a retried request replays the stored response instead
// of submitting again; reusing a key with a different body is a 409.
func (s *Server) Next(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionID(r)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body", nil)
		return
	}
	bodyHash := hashBody(raw)

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key != "" && s.Idem != nil {
		metaFP := idempotency.Fingerprint{
			Key:      idempotency.Key(key),
			Session:  id,
			Route:    nextRoute,
			BodyHash: "",
		}
		if replayed, err := s.replay(ctx, w, r, metaFP, bodyHash); err != nil {
			s.writeAppError(w, r, err)
			return
		} else if replayed {
			return
		}
	}

	res, err := s.Onboarding.Next(ctx, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := NextResponse{
		Outcome: string(res.Result.Outcome),
		Session: sessionFromView(res.View),
	}

	b, err := json.Marshal(resp)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	// Store successful response for replay.
	if key != "" && s.Idem != nil {
		respFP := idempotency.Fingerprint{
			Key:      idempotency.Key(key),
			Session:  id,
			Route:    nextRoute,
			BodyHash: bodyHash,
		}
		// The step ran even if the caller went away; keep its answer for the retry.
		if err := s.Idem.Put(context.WithoutCancel(ctx), respFP, idempotency.Record{
			StatusCode:  http.StatusOK,
			ContentType: "application/json",
			Body:        b,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			s.log.WarnContext(ctx, "idempotency record not stored", slog.Any("err", err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// replay writes a stored response for a repeated request and reports whether it did.
// The first request for a key records the body hash; a later request with the same key
// and a different hash is rejected.
func (s *Server) replay(ctx context.Context, w http.ResponseWriter, r *http.Request, metaFP idempotency.Fingerprint, bodyHash string) (bool, error) {
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		return false, err
	}
	if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return true, nil
		}
	} else {
		if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			s.log.WarnContext(ctx, "idempotency key not pinned",
				slog.String("session_id", string(metaFP.Session)),
				slog.Any("err", err))
		}
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	rec, ok, err := s.Idem.Get(ctx, respFP)
	if err != nil {
		return false, err
	}
	if !ok || rec.StatusCode != http.StatusOK || !strings.HasPrefix(rec.ContentType, "application/json") {
		return false, nil
	}
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
	return true, nil
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, v onboarding.View, err error) {
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sessionFromView(v)})
}

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(chi.URLParam(r, "sessionId"))
}

// decodeBody decodes a JSON request body into dst, writing a 422 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "missing request body"
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", msg, nil)
		return false
	}
	return true
}

func hashBody(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
