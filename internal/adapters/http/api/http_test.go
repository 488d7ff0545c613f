package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/resqlab/pulsecoach/internal/adapters/http/api"
	repository "github.com/resqlab/pulsecoach/internal/adapters/repository"
	"github.com/resqlab/pulsecoach/internal/app"
	"github.com/resqlab/pulsecoach/internal/domain/feedback"
	"github.com/resqlab/pulsecoach/internal/domain/guide"
	"github.com/resqlab/pulsecoach/internal/domain/model"
	"github.com/resqlab/pulsecoach/internal/domain/pose"
	"github.com/resqlab/pulsecoach/internal/domain/score"
	. "github.com/smartystreets/goconvey/convey"
)

// mockService implements api.Dependencies and api.StatsProvider.
type mockService struct {
	sessions map[string]bool

	startErr  error
	submitErr error
	stopErr   error

	lastSample  pose.Sample
	snapshot    score.Snapshot
	events      []feedback.Event
	beat        bool
	summary     model.Summary
	topN        []api.Entry
	topNErr     error
	rank        api.Entry
	rankErr     error
	resetCalled bool
}

func newMockService() *mockService {
	return &mockService{
		sessions: map[string]bool{"session-1": true},
		snapshot: score.Snapshot{BPM: 110, Depth: 0.8, Placement: 0.9},
	}
}

func (m *mockService) StartSession(ctx context.Context, traineeID string) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	return "session-1", nil
}

func (m *mockService) Submit(ctx context.Context, sessionID string, sample pose.Sample) (score.Snapshot, []feedback.Event, bool, error) {
	if m.submitErr != nil {
		return score.Snapshot{}, nil, false, m.submitErr
	}
	if !m.sessions[sessionID] {
		return score.Snapshot{}, nil, false, app.ErrSessionNotFound
	}
	m.lastSample = sample
	return m.snapshot, m.events, m.beat, nil
}

func (m *mockService) Snapshot(ctx context.Context, sessionID string) (score.Snapshot, error) {
	if !m.sessions[sessionID] {
		return score.Snapshot{}, app.ErrSessionNotFound
	}
	return m.snapshot, nil
}

func (m *mockService) ResetSession(ctx context.Context, sessionID string) error {
	if !m.sessions[sessionID] {
		return app.ErrSessionNotFound
	}
	m.resetCalled = true
	return nil
}

func (m *mockService) StopSession(ctx context.Context, sessionID string) (model.Summary, error) {
	if m.stopErr != nil {
		return model.Summary{}, m.stopErr
	}
	if !m.sessions[sessionID] {
		return model.Summary{}, app.ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return m.summary, nil
}

func (m *mockService) TopN(ctx context.Context, n int) ([]api.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockService) Rank(ctx context.Context, traineeID string) (api.Entry, error) {
	if m.rankErr != nil {
		return api.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockService) Guide() guide.Guide {
	return guide.NewStaticGuide()
}

func (m *mockService) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "activeSessions": len(m.sessions)}
}

func newTestMux(m *mockService) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(m, m, 100)
	server.Register(context.Background(), mux)
	return mux
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	Convey("Given the API routes", t, func() {
		m := newMockService()
		mux := newTestMux(m)

		Convey("When POST /sessions with a trainee", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"trainee_id":"trainee-1"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then a session id comes back with 201", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				var resp map[string]string
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp["session_id"], ShouldEqual, "session-1")
			})
		})

		Convey("When POST /sessions without a trainee", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When POST /sessions with malformed JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When GET /sessions/{id}", func() {
			req := httptest.NewRequest(http.MethodGet, "/sessions/session-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the latest snapshot comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var snap score.Snapshot
				So(json.Unmarshal(rec.Body.Bytes(), &snap), ShouldBeNil)
				So(snap.BPM, ShouldEqual, 110.0)
			})
		})

		Convey("When GET /sessions/{unknown}", func() {
			req := httptest.NewRequest(http.MethodGet, "/sessions/missing", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When DELETE /sessions/{id}", func() {
			m.summary = model.Summary{SessionID: "session-1", TraineeID: "trainee-1", Quality: 92.5, Compressions: 40}
			req := httptest.NewRequest(http.MethodDelete, "/sessions/session-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the summary comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var summary model.Summary
				So(json.Unmarshal(rec.Body.Bytes(), &summary), ShouldBeNil)
				So(summary.Quality, ShouldEqual, 92.5)
				So(summary.Compressions, ShouldEqual, 40)
			})
		})

		Convey("When POST /sessions/{id}/reset", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/reset", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 204 and resets the session", func() {
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(m.resetCalled, ShouldBeTrue)
			})
		})

		Convey("When the service is unavailable", func() {
			m.submitErr = app.ErrNotStarted
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples", strings.NewReader(`{"timestamp":1.0}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 503", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the path nests too deep", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples/extra", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestSampleEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		m := newMockService()
		mux := newTestMux(m)

		Convey("When POST /sessions/{id}/samples with a full frame", func() {
			body := `{
				"timestamp": 1.5,
				"left_wrist": {"x": 0.45, "y": 0.5},
				"right_wrist": {"x": 0.55, "y": 0.5},
				"left_shoulder": {"x": 0.4, "y": 0.45},
				"right_shoulder": {"x": 0.6, "y": 0.45}
			}`
			m.events = []feedback.Event{{Kind: "rate_good", Message: "Good pace, keep going!", Timestamp: 1.5}}
			m.beat = true

			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the tick response carries snapshot, feedback and beat", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Snapshot score.Snapshot   `json:"snapshot"`
					Feedback []feedback.Event `json:"feedback"`
					Beat     bool             `json:"beat"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Snapshot.BPM, ShouldEqual, 110.0)
				So(len(resp.Feedback), ShouldEqual, 1)
				So(resp.Feedback[0].Message, ShouldEqual, "Good pace, keep going!")
				So(resp.Beat, ShouldBeTrue)
			})

			Convey("And the landmarks are passed through as present keypoints", func() {
				So(m.lastSample.Timestamp, ShouldEqual, 1.5)
				So(m.lastSample.LeftWrist.Present, ShouldBeTrue)
				So(m.lastSample.LeftWrist.X, ShouldEqual, 0.45)
				So(m.lastSample.HasShoulders(), ShouldBeTrue)
			})
		})

		Convey("When landmarks are missing from the frame", func() {
			body := `{"timestamp": 2.0, "left_wrist": {"x": 0.5, "y": 0.5}}`
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then absent landmarks arrive as not present", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(m.lastSample.LeftWrist.Present, ShouldBeTrue)
				So(m.lastSample.RightWrist.Present, ShouldBeFalse)
				So(m.lastSample.HasShoulders(), ShouldBeFalse)
			})
		})

		Convey("When no feedback is due", func() {
			m.events = nil
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples", strings.NewReader(`{"timestamp":1.0}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the feedback field is an empty array, not null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"feedback":[]`)
			})
		})

		Convey("When the timestamp is negative", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions/session-1/samples", strings.NewReader(`{"timestamp":-1.0}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the session does not exist", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions/missing/samples", strings.NewReader(`{"timestamp":1.0}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given the API routes with ranked trainees", t, func() {
		m := newMockService()
		m.topN = []api.Entry{
			{Rank: 1, TraineeID: "trainee-1", Quality: 95.0, Compressions: 55, AvgBPM: 110},
			{Rank: 2, TraineeID: "trainee-2", Quality: 80.0, Compressions: 40, AvgBPM: 95},
		}
		mux := newTestMux(m)

		Convey("When GET /leaderboard with a valid limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=10", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the entries come back in rank order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var entries []api.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].TraineeID, ShouldEqual, "trainee-1")
				So(entries[0].Quality, ShouldEqual, 95.0)
			})
		})

		Convey("When GET /leaderboard without a limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When GET /leaderboard with a limit over the maximum", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=1000", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "limit_exceeded")
			})
		})

		Convey("When GET /leaderboard with a non-numeric limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=abc", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRankEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		m := newMockService()
		m.rank = api.Entry{Rank: 3, TraineeID: "trainee-1", Quality: 72.0, SessionID: "session-9"}
		mux := newTestMux(m)

		Convey("When GET /rank/{trainee_id}", func() {
			req := httptest.NewRequest(http.MethodGet, "/rank/trainee-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the entry comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var entry api.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.Rank, ShouldEqual, 3)
				So(entry.SessionID, ShouldEqual, "session-9")
			})
		})

		Convey("When the trainee is unknown", func() {
			m.rankErr = repository.ErrNotFound
			req := httptest.NewRequest(http.MethodGet, "/rank/missing", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the path has no trainee", func() {
			req := httptest.NewRequest(http.MethodGet, "/rank/", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestGuideEndpoints(t *testing.T) {
	Convey("Given the API routes", t, func() {
		m := newMockService()
		mux := newTestMux(m)

		Convey("When GET /guide/steps", func() {
			req := httptest.NewRequest(http.MethodGet, "/guide/steps", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the walkthrough comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Steps []string `json:"steps"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(len(resp.Steps), ShouldEqual, 7)
			})
		})

		Convey("When GET /guide/checklist", func() {
			req := httptest.NewRequest(http.MethodGet, "/guide/checklist", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the emergency checklist comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Checklist []string `json:"checklist"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(len(resp.Checklist), ShouldEqual, 7)
			})
		})

		Convey("When POST /guide/ask with a question", func() {
			req := httptest.NewRequest(http.MethodPost, "/guide/ask", strings.NewReader(`{"question":"how deep?"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then an answer comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Answer string `json:"answer"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Answer, ShouldContainSubstring, "2 inches")
			})
		})

		Convey("When POST /guide/ask without a question", func() {
			req := httptest.NewRequest(http.MethodPost, "/guide/ask", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When GET /guide/ask", func() {
			req := httptest.NewRequest(http.MethodGet, "/guide/ask", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the method is not served", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		m := newMockService()
		mux := newTestMux(m)

		Convey("When GET /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the service stats come back as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldBeTrue)
			})
		})
	})
}
