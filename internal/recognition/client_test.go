package recognition

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.RecognitionConfig{URL: srv.URL + "/recognize", APIKey: apiKey, Timeout: 2 * time.Second})
}

func TestRecognize_ParsesFaces(t *testing.T) {
	id := uuid.New()
	var gotKey string
	var gotImage []byte

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if f, _, err := r.FormFile("image"); err == nil {
			gotImage, _ = io.ReadAll(f)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"user_id":"` + id.String() + `","email":"ann@example.com","distance":0.31,"encoding":[0.1,0.2]},
			{"user_id":null,"email":null,"distance":null,"encoding":[0.3]}
		]}`))
	}, "secret")

	faces, err := c.Recognize(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, []byte("jpeg-bytes"), gotImage)

	require.Len(t, faces, 2)
	require.NotNil(t, faces[0].UserID)
	assert.Equal(t, id, *faces[0].UserID)
	assert.Equal(t, "ann@example.com", faces[0].Email)
	require.NotNil(t, faces[0].Distance)
	assert.InDelta(t, 0.31, *faces[0].Distance, 1e-9)
	assert.Equal(t, []float32{0.1, 0.2}, faces[0].Encoding)

	assert.Nil(t, faces[1].UserID)
	assert.Nil(t, faces[1].Distance)
}

func TestRecognize_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	var present bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-Api-Key"]
		_, _ = w.Write([]byte(`{"results":[]}`))
	}, "")

	_, err := c.Recognize(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRecognize_EmptyResultsIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}, "")

	faces, err := c.Recognize(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.NotNil(t, faces)
	assert.Empty(t, faces)
}

func TestRecognize_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"missing results", http.StatusOK, `{"faces":[]}`},
		{"null results", http.StatusOK, `{"results":null}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, "")

			_, err := c.Recognize(context.Background(), []byte("x"))
			require.Error(t, err)

			var re *RecognitionError
			assert.True(t, errors.As(err, &re))
			assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
		})
	}
}

func TestRecognize_NonUUIDUserIsUnmatched(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"user_id":"42","encoding":[1]}]}`))
	}, "")

	faces, err := c.Recognize(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Nil(t, faces[0].UserID)
}

func TestRecognize_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.RecognitionConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Recognize(context.Background(), []byte("x"))

	var re *RecognitionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEncode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"encoding":[0.5,0.25]},{"encoding":[9]}]}`))
	}, "")

	enc, err := c.Encode(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, enc)
}

func TestEncode_NoFace(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}, "")

	_, err := c.Encode(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNoFace)
}
