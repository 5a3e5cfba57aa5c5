package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ladywillingdontech-stack/healthai/internal/intake"
	"github.com/ladywillingdontech-stack/healthai/pkg"
)

// Directory is the read-side view of the stores consumed by the staff
// endpoints.  Both the Postgres repository and the in-memory store satisfy
// it.
type Directory interface {
	ListSessions(ctx context.Context) ([]*pkg.Session, error)
	Load(ctx context.Context, patientID string) (*pkg.Session, error)
	GetBySession(ctx context.Context, sessionID string) (*pkg.EMR, error)
}

// InboundMessage is the transport payload for one patient message.  The
// delivery layer (WhatsApp relay or equivalent) owns the outer wire format;
// it hands the engine only the patient identity and the transcribed text.
type InboundMessage struct {
	PatientID string `json:"patient_id"`
	Text      string `json:"text"`
}

// OutboundMessage carries the engine's reply back to the delivery layer.
type OutboundMessage struct {
	PatientID string `json:"patient_id"`
	Reply     string `json:"reply"`
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Processor   *intake.Processor
	Directory   Directory
	VerifyToken string
	Log         zerolog.Logger
}

// NewServer constructs a Server.
func NewServer(processor *intake.Processor, directory Directory, verifyToken string, log zerolog.Logger) *Server {
	return &Server{
		Processor:   processor,
		Directory:   directory,
		VerifyToken: verifyToken,
		Log:         log,
	}
}

// ServeHTTP dispatches incoming requests based on the URL path.  Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/healthz" && r.Method == http.MethodGet:
		io.WriteString(w, "ok")
		return
	// Webhook verification handshake from the messaging platform.
	case path == "/webhook" && r.Method == http.MethodGet:
		s.handleVerifyWebhook(w, r)
		return
	// Inbound patient message.
	case path == "/webhook" && r.Method == http.MethodPost:
		s.handleInbound(w, r)
		return
	// Staff API: list sessions as JSON.
	case path == "/api/sessions" && r.Method == http.MethodGet:
		s.handleListSessions(w, r)
		return
	// Staff API: session detail and its EMR.
	case strings.HasPrefix(path, "/api/sessions/") && r.Method == http.MethodGet:
		rest := strings.TrimPrefix(path, "/api/sessions/")
		if patientID, ok := strings.CutSuffix(rest, "/emr"); ok && patientID != "" {
			s.handleGetEMR(w, r, patientID)
			return
		}
		if rest != "" && !strings.Contains(rest, "/") {
			s.handleGetSession(w, r, rest)
			return
		}
		http.NotFound(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleVerifyWebhook answers the platform's subscription handshake: echo
// the challenge back when the verify token matches.
func (s *Server) handleVerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")
	if mode == "subscribe" && token == s.VerifyToken {
		io.WriteString(w, challenge)
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// handleInbound runs one turn for an inbound patient message and returns the
// reply for delivery.  The transport is at-least-once: a duplicate delivery
// simply replays the turn, which the engine's monotonicity invariants make
// safe.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.PatientID) == "" || strings.TrimSpace(in.Text) == "" {
		http.Error(w, "patient_id and text are required", http.StatusBadRequest)
		return
	}
	reply, err := s.Processor.HandleMessage(ctx, in.PatientID, in.Text)
	if err != nil {
		// The processor already mapped the failure to a safe
		// patient-facing reply; delivery still happens.
		s.Log.Error().Err(err).Str("patient_id", in.PatientID).Msg("turn failed")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OutboundMessage{PatientID: in.PatientID, Reply: reply})
}

// sessionPreview is the list-view projection of a session.
type sessionPreview struct {
	SessionID  string         `json:"session_id"`
	PatientID  string         `json:"patient_id"`
	Phase      pkg.Phase      `json:"phase"`
	AlertLevel pkg.AlertLevel `json:"alert_level"`
	Messages   int            `json:"messages"`
	UpdatedAt  string         `json:"updated_at"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.Directory.ListSessions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	previews := make([]sessionPreview, 0, len(sessions))
	for _, sess := range sessions {
		previews = append(previews, sessionPreview{
			SessionID:  sess.ID,
			PatientID:  sess.PatientID,
			Phase:      sess.Phase,
			AlertLevel: sess.Alert.Level,
			Messages:   len(sess.MessageLog),
			UpdatedAt:  sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(previews)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, patientID string) {
	sess, err := s.Directory.Load(r.Context(), patientID)
	if errors.Is(err, intake.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess)
}

func (s *Server) handleGetEMR(w http.ResponseWriter, r *http.Request, patientID string) {
	ctx := r.Context()
	sess, err := s.Directory.Load(ctx, patientID)
	if errors.Is(err, intake.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	emr, err := s.Directory.GetBySession(ctx, sess.ID)
	if errors.Is(err, intake.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(emr)
}
