package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/remote"
)

// alarmService emulates the alarm REST service, its Socket.IO push channel and the LAN speaker.
type alarmService struct {
	*httptest.Server

	mu       sync.Mutex
	alarms   map[string]*alarm.Alarm
	notified []string
	stops    int
	pushed   []*alarm.Alarm
}

func newAlarmService(t *testing.T, alarms ...*alarm.Alarm) *alarmService {
	t.Helper()

	s := &alarmService{alarms: make(map[string]*alarm.Alarm, len(alarms))}
	for _, a := range alarms {
		s.alarms[a.ID] = a.Clone()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("GET /alarms", s.list)
	mux.HandleFunc("GET /alarms/count", s.count)
	mux.HandleFunc("GET /alarms/{id}", s.get)
	mux.HandleFunc("POST /alarms/notify/{guard}/{alarm}", s.notify)
	mux.HandleFunc("PUT /alarms/{id}/status", s.status)
	mux.HandleFunc("GET /users/guards", s.guards)
	mux.HandleFunc("GET /users/{id}", s.user)
	mux.HandleFunc("POST /speaker/stop-speaker", s.stopSpeaker)
	mux.HandleFunc("GET /socket.io/", s.push)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

func (s *alarmService) pushURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// schedulePush queues an alarm announced to the next push connection.
func (s *alarmService) schedulePush(a *alarm.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushed = append(s.pushed, a.Clone())
}

func (s *alarmService) notifications() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.notified...)
}

func (s *alarmService) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stops
}

func (s *alarmService) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})

		return
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "op-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("integration"))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"role":         "operator",
		"user_id":      "op-1",
	})
}

func (s *alarmService) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "not authenticated"})

		return false
	}

	return true
}

func (s *alarmService) list(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	out := make([]*alarm.Alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		out = append(out, a.Clone())
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b *alarm.Alarm) int { return b.Timestamp.Compare(a.Timestamp) })

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 10
	}

	start := min((page-1)*perPage, len(out))
	writeJSON(w, http.StatusOK, out[start:min(start+perPage, len(out))])
}

func (s *alarmService) get(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Alarm not found"})

		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *alarmService) count(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	total := len(s.alarms)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{"total_alarms": total})
}

func (s *alarmService) notify(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	s.mu.Lock()
	s.notified = append(s.notified, r.PathValue("guard")+"/"+r.PathValue("alarm"))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "notification sent"})
}

func (s *alarmService) status(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	var update remote.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "alarm not found"})

		return
	}

	operator := update.OperatorID
	a.Status = update.Status
	a.OperatorID = &operator
	a.GuardID = update.GuardID

	writeJSON(w, http.StatusOK, a)
}

func (s *alarmService) guards(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, []user.User{{ID: "g-1", Username: "ivan", Role: user.RoleGuard}})
}

func (s *alarmService) user(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, user.User{ID: r.PathValue("id"), Username: "olga", Role: user.RoleOperator})
}

func (s *alarmService) stopSpeaker(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "stopped"})
}

func (s *alarmService) push(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	upgrader := websocket.Upgrader{}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	pushed := s.pushed
	s.pushed = nil
	s.mu.Unlock()

	open := `0{"sid":"s-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`
	if err = conn.WriteMessage(websocket.TextMessage, []byte(open)); err != nil {
		return
	}

	if _, join, err := conn.ReadMessage(); err != nil || !strings.HasPrefix(string(join), "40") {
		return
	}

	if err = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"n-1"}`)); err != nil {
		return
	}

	for _, a := range pushed {
		event, err := json.Marshal([]any{remote.EventNewAlarm, a})
		if err != nil {
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, append([]byte("42"), event...)); err != nil {
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
