package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-maestro/grading"
	"github.com/RyanBlaney/sonido-maestro/grading/config"
	"github.com/RyanBlaney/sonido-maestro/transcode"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	g, err := grading.NewGrader(config.DefaultGradingConfig())
	require.NoError(t, err)
	return newRouter(g, transcode.NewDecoder(nil), []string{"*"})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["id"])
}

func TestCompareEndpoint(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{
			name: "ok",
			body: `{"ideal_notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}, {"pitch": 494, "velocity": 80, "start": 1, "end": 2}],
			        "actual_notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}, {"pitch": 660, "velocity": 80, "start": 1, "end": 2}]}`,
			status: http.StatusOK,
		},
		{
			name:   "empty ideal",
			body:   `{"ideal_notes": [], "actual_notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}]}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "malformed note",
			body:   `{"ideal_notes": [{"pitch": 440, "velocity": 200, "start": 0, "end": 1}], "actual_notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}]}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "not json",
			body:   `{"ideal_notes": `,
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			body := decodeBody(t, rr)
			assert.NotEmpty(t, body["id"])
			if tc.status != http.StatusOK {
				assert.NotEmpty(t, body["error"])
				return
			}

			accuracy := body["accuracy"].(map[string]any)
			assert.Equal(t, 50.0, accuracy["tuning"])
			assert.Len(t, body["differences"], 1)
		})
	}
}

func TestCompareEmptyInputMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader(`{"ideal_notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}]}`))
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "no actual notes")
}

func TestUnknownMethod(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/compare", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func melodyWAV(t *testing.T, freqs ...float64) []byte {
	t.Helper()
	const sampleRate = 16000

	data := make([]int, sampleRate/5)
	for _, f := range freqs {
		for i := 0; i < sampleRate*2/5; i++ {
			data = append(data, int(math.Round(0.3*32767*math.Sin(2*math.Pi*f*float64(i)/sampleRate))))
		}
		data = append(data, make([]int, sampleRate/10)...)
	}

	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func gradeRequest(t *testing.T, scoreJSON string, recording []byte, tempo string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("score", "etude.json")
	require.NoError(t, err)
	_, err = io.WriteString(part, scoreJSON)
	require.NoError(t, err)

	if recording != nil {
		part, err = mw.CreateFormFile("recording", "take.wav")
		require.NoError(t, err)
		_, err = part.Write(recording)
		require.NoError(t, err)
	}

	require.NoError(t, mw.WriteField("tempo", tempo))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/grade", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGradeEndpoint(t *testing.T) {
	scoreJSON := `{"tempo": 100, "notes": [
		{"pitch": 261.63, "velocity": 95, "start": 0.0, "end": 0.4},
		{"pitch": 329.63, "velocity": 95, "start": 0.5, "end": 0.9},
		{"pitch": 392.00, "velocity": 95, "start": 1.0, "end": 1.4}
	]}`

	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, gradeRequest(t, scoreJSON, melodyWAV(t, 261.63, 329.63, 392.0), "100"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.NotEmpty(t, body["id"])
	assert.Len(t, body["actual_notes"], 3)
	assert.Equal(t, 100.0, body["accuracy"].(map[string]any)["tuning"])
}

func TestGradeEndpointErrors(t *testing.T) {
	router := newTestRouter(t)
	scoreJSON := `{"notes": [{"pitch": 440, "velocity": 80, "start": 0, "end": 1}]}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, gradeRequest(t, scoreJSON, nil, "100"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, gradeRequest(t, scoreJSON, melodyWAV(t, 440), "fast"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// a silent take transcribes to nothing
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, gradeRequest(t, scoreJSON, melodyWAV(t), "100"))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
