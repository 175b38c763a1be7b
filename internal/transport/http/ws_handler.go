package http

import (
	"encoding/json"
	"net/http"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/exam"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.ExamService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type tickPayload struct {
	RemainingSeconds int    `json:"remainingSeconds"`
	Clock            string `json:"clock"`
}

type noticePayload struct {
	Message string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets, starts an attempt and relays
// candidate actions to it. Closing the socket before submitting abandons the attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	test := r.URL.Query().Get("test")
	userID := r.URL.Query().Get("userId")
	if group == "" || test == "" || userID == "" {
		http.Error(w, "missing group, test, or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	view, err := h.service.StartAttempt(r.Context(), userID, group, test)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	attemptID := view.AttemptID
	log := h.log.With().Str("attempt_id", attemptID).Str("user_id", userID).Logger()

	events, cancel, err := h.service.Subscribe(attemptID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		h.service.Discard(attemptID)
		return
	}
	defer h.service.Discard(attemptID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				// unblock the reader so the handler can wind down
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- eventMessage(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(attemptID, inbound) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// handle applies one inbound message and returns the replies to send.
func (h *WSHandler) handle(attemptID string, inbound inboundMessage) []outboundMessage[any] {
	var (
		view domain.AttemptView
		err  error
	)

	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{errorMessage("invalid select payload")}
		}
		view, err = h.service.SelectOption(attemptID, payload.Option)
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{errorMessage("invalid jump payload")}
		}
		view, err = h.service.JumpTo(attemptID, payload.Index)
	case "next":
		view, err = h.service.Advance(attemptID)
	case "previous":
		view, err = h.service.Retreat(attemptID)
	case "mark":
		view, err = h.service.MarkForReview(attemptID)
	case "clear":
		view, err = h.service.ClearResponse(attemptID)
	case "requestSubmit":
		view, err = h.service.RequestSubmit(attemptID)
	case "cancelSubmit":
		view, err = h.service.CancelSubmit(attemptID)
	case "state":
		view, err = h.service.View(attemptID)
	case "submit":
		// the summary reaches the client through the attempt's event stream
		if _, err := h.service.Submit(attemptID); err != nil {
			return []outboundMessage[any]{errorMessage(err.Error())}
		}
		return nil
	case "report":
		report, err := h.service.Report(attemptID)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err.Error())}
		}
		return []outboundMessage[any]{{Type: "report", Payload: report}}
	default:
		return []outboundMessage[any]{errorMessage("unsupported message type")}
	}

	state := outboundMessage[any]{Type: "state", Payload: view}
	if err != nil {
		return []outboundMessage[any]{errorMessage(err.Error()), state}
	}
	return []outboundMessage[any]{state}
}

func eventMessage(ev exam.Event) outboundMessage[any] {
	switch ev.Type {
	case exam.EventSubmitted:
		return outboundMessage[any]{Type: "summary", Payload: ev.Summary}
	case exam.EventNotice:
		return outboundMessage[any]{Type: "notice", Payload: noticePayload{Message: "your result could not be saved: " + ev.Notice}}
	default:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{
			RemainingSeconds: ev.RemainingSeconds,
			Clock:            exam.FormatClock(ev.RemainingSeconds),
		}}
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
