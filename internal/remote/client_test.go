package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
)

const (
	testBaseURL    = "https://alarms.test/api"
	testSpeakerURL = "http://speaker.lan:5000"
)

// newMockClient returns a client whose requests are answered by a private mock transport.
func newMockClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	opts = append([]Option{
		WithHTTPClient(&http.Client{Transport: transport}),
		WithSpeakerURL(testSpeakerURL),
		WithTokenSource(func() (string, bool) { return "tok", true }),
	}, opts...)

	client, err := New(testBaseURL, opts...)
	require.NoError(t, err)

	return client, transport
}

const pendingAlarmJSON = `{
	"id": "a-1",
	"camera_id": "cam-1",
	"camera_location": "Gate A",
	"confidence_score": 0.9,
	"type": "human",
	"timestamp": "2024-11-20T10:15:30",
	"status": "PENDING",
	"operator_id": null,
	"guard_id": null
}`

// TestClient_ListAlarms checks paging parameters and the auth headers.
func TestClient_ListAlarms(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponderWithQuery(http.MethodGet, testBaseURL+"/alarms", "page=2&per_page=10",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "Bearer tok", req.Header.Get(headerAuthorization))
			_, err := uuid.Parse(req.Header.Get(headerRequestID))
			require.NoError(t, err)

			return httpmock.NewStringResponse(http.StatusOK, "["+pendingAlarmJSON+"]"), nil
		})

	alarms, err := client.ListAlarms(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, "a-1", alarms[0].ID)
	require.Equal(t, alarm.StatusPending, alarms[0].Status)
}

// TestClient_NoToken refuses authenticated calls without a session.
func TestClient_NoToken(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t, WithTokenSource(func() (string, bool) { return "", false }))

	_, err := client.CountAlarms(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.Zero(t, transport.GetTotalCallCount())
}

// TestClient_CountAlarms decodes the total.
func TestClient_CountAlarms(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/count",
		httpmock.NewStringResponder(http.StatusOK, `{"success": true, "total_alarms": 42}`))

	total, err := client.CountAlarms(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, total)
}

// TestClient_AlarmsByLocation requires both the location and the camera.
func TestClient_AlarmsByLocation(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/bylocation/north-gate/cam-1",
		httpmock.NewStringResponder(http.StatusOK, "["+pendingAlarmJSON+"]"))

	alarms, err := client.AlarmsByLocation(context.Background(), "north-gate", "cam-1")
	require.NoError(t, err)
	require.Len(t, alarms, 1)

	_, err = client.AlarmsByLocation(context.Background(), "north-gate", "")
	require.ErrorIs(t, err, errIDRequired)

	_, err = client.AlarmsByLocation(context.Background(), "", "cam-1")
	require.ErrorIs(t, err, errIDRequired)
	require.Equal(t, 1, transport.GetTotalCallCount())
}

// TestClient_Alarm fetches one alarm by id.
func TestClient_Alarm(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/a-1",
		httpmock.NewStringResponder(http.StatusOK, pendingAlarmJSON))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/a-9",
		httpmock.NewStringResponder(http.StatusNotFound, `{"message": "Alarm not found"}`))

	a, err := client.Alarm(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "a-1", a.ID)
	require.Equal(t, alarm.StatusPending, a.Status)

	_, err = client.Alarm(context.Background(), "a-9")
	require.True(t, IsStatus(err, http.StatusNotFound))

	_, err = client.Alarm(context.Background(), "")
	require.ErrorIs(t, err, errIDRequired)
}

// TestClient_AlarmImage maps a missing image to ErrNoImage.
func TestClient_AlarmImage(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/a-1/image",
		httpmock.NewStringResponder(http.StatusOK, `{"image": "aGVsbG8="}`))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/alarms/a-2/image",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error": "Image not found"}`))

	img, err := client.AlarmImage(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8=", img)

	_, err = client.AlarmImage(context.Background(), "a-2")
	require.ErrorIs(t, err, ErrNoImage)
}

// TestClient_NotifyGuard surfaces the server message on failure.
func TestClient_NotifyGuard(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodPost, testBaseURL+"/alarms/notify/g-1/a-1",
		httpmock.NewStringResponder(http.StatusOK, `{"message": "Notification sent"}`))
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/alarms/notify/g-2/a-1",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"message": "guard unreachable"}`))

	require.NoError(t, client.NotifyGuard(context.Background(), "g-1", "a-1"))

	err := client.NotifyGuard(context.Background(), "g-2", "a-1")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Code)
	require.Equal(t, "guard unreachable", se.Message)
	require.True(t, IsStatus(err, http.StatusBadGateway))
}

// TestClient_UpdateStatus sends the status body and decodes the stored record.
func TestClient_UpdateStatus(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodPut, testBaseURL+"/alarms/a-1/status",
		func(req *http.Request) (*http.Response, error) {
			require.Equal(t, contentTypeJSON, req.Header.Get(headerContentType))

			raw, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.JSONEq(t, `{"status":"NOTIFIED","guard_id":"g-1","operator_id":"op-1"}`, string(raw))

			return httpmock.NewStringResponse(http.StatusOK, `{
				"id": "a-1", "camera_id": "cam-1", "type": "human",
				"timestamp": "2024-11-20T10:15:30", "status": "NOTIFIED",
				"operator_id": "op-1", "guard_id": "g-1"
			}`), nil
		})

	guard := "g-1"
	updated, err := client.UpdateStatus(context.Background(), "a-1", StatusUpdate{
		Status:     alarm.StatusNotified,
		GuardID:    &guard,
		OperatorID: "op-1",
	})
	require.NoError(t, err)
	require.Equal(t, alarm.StatusNotified, updated.Status)
	require.Equal(t, "g-1", *updated.GuardID)
}

// TestClient_StopAlert posts to the speaker without a token.
func TestClient_StopAlert(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodPost, testSpeakerURL+"/speaker/stop-speaker",
		func(req *http.Request) (*http.Response, error) {
			require.Empty(t, req.Header.Get(headerAuthorization))

			return httpmock.NewStringResponse(http.StatusOK, `{"status": "success"}`), nil
		})

	require.NoError(t, client.StopAlert(context.Background()))

	bare, err := New(testBaseURL)
	require.NoError(t, err)
	require.ErrorIs(t, bare.StopAlert(context.Background()), errSpeakerNotSet)
}

// TestClient_Users decodes user profiles.
func TestClient_Users(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t)

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/users/op-1",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"op-1","username":"o.shokin","email":"o@example.com","role":"OPERATOR"}`))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/users/guards",
		httpmock.NewStringResponder(http.StatusOK, `[{"id":"g-1","username":"guard","role":"GUARD"}]`))

	u, err := client.User(context.Background(), "op-1")
	require.NoError(t, err)
	require.Equal(t, "o.shokin", u.Username)
	require.Equal(t, user.RoleOperator, u.Role)

	guards, err := client.Guards(context.Background())
	require.NoError(t, err)
	require.Len(t, guards, 1)
	require.Equal(t, user.RoleGuard, guards[0].Role)
}

// TestClient_Login reads the token expiry without verifying the signature.
func TestClient_Login(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t, WithTokenSource(nil))

	exp := time.Date(2024, 11, 20, 11, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	transport.RegisterResponder(http.MethodPost, testBaseURL+"/auth/login",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

			if body["password"] != "secret" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error": "Invalid password"}`), nil
			}

			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{
				"access_token": token,
				"role":         "operator",
				"user_id":      "u-1",
			})
		})

	result, err := client.Login(context.Background(), "o.shokin", "secret")
	require.NoError(t, err)
	require.Equal(t, token, result.Token)
	require.Equal(t, user.RoleOperator, result.Role)
	require.Equal(t, "u-1", result.UserID)
	require.True(t, exp.Equal(result.ExpiresAt))

	_, err = client.Login(context.Background(), "o.shokin", "wrong")
	require.True(t, IsStatus(err, http.StatusUnauthorized))
}

// TestClient_CallTimeout bounds a call that never answers.
func TestClient_CallTimeout(t *testing.T) {
	t.Parallel()
	client, transport := newMockClient(t, WithCallTimeout(20*time.Millisecond))

	transport.RegisterResponder(http.MethodGet, testBaseURL+"/users/guards",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()

			return nil, req.Context().Err()
		})

	_, err := client.Guards(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

// TestNew rejects an empty base URL.
func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.ErrorIs(t, err, errBaseURLRequired)
}
