package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"survey-analytics-service/internal/app"
	"survey-analytics-service/internal/domain"
)

// WSHandler pushes every committed survey aggregate to connected dashboards.
// It is a commit notification feed: a slow client only sees the newest commit.
type WSHandler struct {
	service  *app.AnalyticsService
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewWSHandler(service *app.AnalyticsService, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type trendPayload struct {
	Hours int `json:"hours"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades to a websocket bound to one survey. Clients receive a
// "snapshot" first, then an "analytics" message per commit. They may send
// "refresh" to trigger a recomputation and "trend" to request the hourly trend.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	surveyID := r.URL.Query().Get("surveyId")
	if surveyID == "" {
		http.Error(w, "missing surveyId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	logger := h.log.WithField("survey", surveyID)

	// Subscribe before the snapshot so no commit in between is missed.
	updates, cancel := h.service.SubscribeSurvey(surveyID)
	defer cancel()

	snapshot, err := h.service.SurveyAnalytics(r.Context(), surveyID)
	if err != nil && (snapshot.SurveyID == "" || !errors.Is(err, domain.ErrComputationFailed)) {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer; gorilla connections allow one concurrent writer. A failed
	// write closes the connection so the read loop below returns too.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.WithError(err).Debug("ws write error")
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !enqueue(send, writerDone, closeSignals, outboundMessage[any]{Type: "analytics", Payload: update}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) bool {
		return enqueue(send, writerDone, closeSignals, msg)
	}
	replyError := func(msg string) bool {
		return reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}})
	}

	ok := reply(outboundMessage[any]{Type: "snapshot", Payload: snapshot})
	for ok {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			if _, err := h.service.TriggerSurvey(r.Context(), surveyID); err != nil {
				ok = replyError(err.Error())
			}
		case "trend":
			var payload trendPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					ok = replyError("invalid trend payload")
					continue
				}
			}
			trend, err := h.service.HourlyTrend(r.Context(), surveyID, payload.Hours)
			if err != nil {
				ok = replyError(err.Error())
				continue
			}
			ok = reply(outboundMessage[any]{Type: "trend", Payload: trend})
		default:
			ok = replyError("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It reports false once the writer has exited
// or the connection is shutting down.
func enqueue(send chan<- outboundMessage[any], writerDone, closing <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	case <-closing:
		return false
	}
}
