package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/evoked/internal/adapters/api"
	"github.com/okian/evoked/internal/adapters/repository"
	"github.com/okian/evoked/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDeps struct {
	submitted []model.StimulusEvent
	entries   []repository.Entry
	target    string
}

func (f *fakeDeps) SubmitEvent(_ context.Context, ev model.StimulusEvent) {
	f.submitted = append(f.submitted, ev)
}

func (f *fakeDeps) TopN(_ context.Context, n int) ([]repository.Entry, error) {
	if n > len(f.entries) {
		n = len(f.entries)
	}
	return f.entries[:n], nil
}

func (f *fakeDeps) Rank(_ context.Context, identifier string) (repository.Entry, error) {
	for _, e := range f.entries {
		if e.Identifier == identifier {
			return e, nil
		}
	}
	return repository.Entry{}, repository.ErrNotFound
}

func (f *fakeDeps) Target() string { return f.target }

func (f *fakeDeps) Stats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func TestHTTPRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &fakeDeps{
			target: "e4",
			entries: []repository.Entry{
				{Rank: 1, Identifier: "e4", BestConfidence: 0.9, Trials: 3, Detections: 2},
				{Rank: 2, Identifier: "d5", BestConfidence: 0.4, Trials: 3},
			},
		}
		mux := newTestMux(deps)

		Convey("When requesting /healthz", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it should report ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"ok"`)
			})
		})

		Convey("When requesting /metrics", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then it should serve the Prometheus registry", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When requesting /stats", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then it should return the stats document", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"started":true`)
			})
		})

		Convey("When requesting /ranking", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ranking?limit=1", nil))

			Convey("Then it should return the top entries and target", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Target  string             `json:"target"`
					Entries []repository.Entry `json:"entries"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Target, ShouldEqual, "e4")
				So(len(resp.Entries), ShouldEqual, 1)
				So(resp.Entries[0].Identifier, ShouldEqual, "e4")
			})
		})

		Convey("When requesting /ranking with a bad limit", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ranking?limit=zero", nil))

			Convey("Then it should reject the request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When requesting /ranking/{identifier}", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ranking/d5", nil))

			Convey("Then it should return that entry", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"d5"`)
			})
		})

		Convey("When requesting an unknown identifier", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ranking/zz", nil))

			Convey("Then it should return 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When posting a valid marker to /events", func() {
			body := `{"marker":"square_flash|square=e4","source_id":"manual","timestamp":12.5}`
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

			Convey("Then the event should reach the pipeline", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].Kind, ShouldEqual, model.KindFlash)
				So(deps.submitted[0].Identifier, ShouldEqual, "e4")
			})
		})

		Convey("When posting a malformed marker to /events", func() {
			body := `{"marker":"bogus","source_id":"manual","timestamp":1}`
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

			Convey("Then it should reject the request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(len(deps.submitted), ShouldEqual, 0)
			})
		})

		Convey("When using the wrong method", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

			Convey("Then it should 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
