package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/okian/hurdletime/internal/adapters/http/api"
	"github.com/okian/hurdletime/internal/adapters/transport/sim"
	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type harness struct {
	svc   *service.Service
	radio *sim.Transport
	srv   *httptest.Server
}

func newHarness() *harness {
	radio := sim.New(sim.WithJitter(0))
	svc := service.New(
		service.WithTransport(radio),
		service.WithSeedAthletes(true),
		service.WithLivenessInterval(time.Hour),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	srv := httptest.NewServer(api.NewServer(svc).Routes())
	return &harness{svc: svc, radio: radio, srv: srv}
}

func (h *harness) close() {
	h.srv.Close()
	h.svc.Stop()
}

func (h *harness) do(method, path string, body any) (*http.Response, []byte) {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, h.srv.URL+path, rd)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func (h *harness) athletes() []model.Athlete {
	_, raw := h.do(http.MethodGet, "/athletes", nil)
	var out []model.Athlete
	_ = json.Unmarshal(raw, &out)
	return out
}

func codeOf(raw []byte) string {
	var e struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(raw, &e)
	return e.Code
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("Then /healthz should report ok", func() {
			resp, raw := h.do(http.MethodGet, "/healthz", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(raw), ShouldContainSubstring, `"ok"`)
		})

		Convey("Then /metrics should expose the registry", func() {
			h.do(http.MethodGet, "/healthz", nil)
			resp, raw := h.do(http.MethodGet, "/metrics", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(raw), ShouldContainSubstring, "http_requests_total")
		})
	})
}

func TestRaceEndpoints(t *testing.T) {
	Convey("Given a running API with the seeded roster", t, func() {
		h := newHarness()
		defer h.close()
		juan := h.athletes()[0]

		Convey("When starting a race before connecting", func() {
			resp, raw := h.do(http.MethodPost, "/race/start", map[string]any{"athleteId": juan.ID, "hurdles": 3})

			Convey("Then it should conflict with device_not_connected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(codeOf(raw), ShouldEqual, "device_not_connected")
			})
		})

		Convey("When the sensor is connected", func() {
			resp, raw := h.do(http.MethodPost, "/device/connect", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var st service.Status
			So(json.Unmarshal(raw, &st), ShouldBeNil)
			So(st.Connection, ShouldEqual, model.Connected)

			Convey("And a race runs two splits and is finished by hand", func() {
				resp, _ := h.do(http.MethodPost, "/race/start", map[string]any{"athleteId": juan.ID, "hurdles": 5})
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(h.radio.Emit(1000), ShouldBeTrue)
				So(h.radio.Emit(2300), ShouldBeTrue)

				resp, raw := h.do(http.MethodPost, "/race/finish", nil)

				Convey("Then the session should carry splits and deltas", func() {
					So(resp.StatusCode, ShouldEqual, http.StatusOK)
					var out struct {
						Session struct {
							HurdleTimes []uint32 `json:"hurdleTimes"`
							TotalTime   uint32   `json:"totalTime"`
							Deltas      []uint32 `json:"deltas"`
						} `json:"session"`
					}
					So(json.Unmarshal(raw, &out), ShouldBeNil)
					So(out.Session.HurdleTimes, ShouldResemble, []uint32{1000, 2300})
					So(out.Session.Deltas, ShouldResemble, []uint32{1000, 1300})
					So(out.Session.TotalTime, ShouldEqual, 2300)
				})

				Convey("Then the athlete stats and leaderboard should reflect it", func() {
					_, raw := h.do(http.MethodGet, "/athletes/"+juan.ID+"/stats", nil)
					So(string(raw), ShouldContainSubstring, `"bestText":"2.300s"`)

					_, raw = h.do(http.MethodGet, "/leaderboard?limit=1", nil)
					var board []map[string]any
					So(json.Unmarshal(raw, &board), ShouldBeNil)
					So(board, ShouldHaveLength, 1)
					So(board[0]["athleteId"], ShouldEqual, juan.ID)
				})
			})

			Convey("And a second connect should conflict as busy", func() {
				resp, raw := h.do(http.MethodPost, "/device/connect", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(codeOf(raw), ShouldEqual, "busy")
			})

			Convey("And disconnecting should report Disconnected", func() {
				_, raw := h.do(http.MethodPost, "/device/disconnect", nil)
				var st service.Status
				So(json.Unmarshal(raw, &st), ShouldBeNil)
				So(st.Connection, ShouldEqual, model.Disconnected)
			})
		})

		Convey("When the request body is malformed", func() {
			resp, raw := h.do(http.MethodPost, "/race/start", []byte(`{"athlete":`))

			Convey("Then it should be a bad request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(codeOf(raw), ShouldEqual, "bad_request")
			})
		})
	})
}

func TestAthleteEndpoints(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("When adding an athlete", func() {
			resp, raw := h.do(http.MethodPost, "/athletes", map[string]string{"name": "Lucía", "category": "Master"})
			var a model.Athlete
			So(json.Unmarshal(raw, &a), ShouldBeNil)

			Convey("Then it should be created", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				So(h.athletes(), ShouldHaveLength, 4)
			})

			Convey("And deleting it twice should end in not found", func() {
				resp, _ := h.do(http.MethodDelete, "/athletes/"+a.ID, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
				resp, _ = h.do(http.MethodDelete, "/athletes/"+a.ID, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the category is unknown", func() {
			resp, _ := h.do(http.MethodPost, "/athletes", map[string]string{"name": "Lucía", "category": "Cadet"})

			Convey("Then it should be a bad request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When asking stats for an unknown athlete", func() {
			resp, _ := h.do(http.MethodGet, "/athletes/ghost/stats", nil)

			Convey("Then it should be not found", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestExportImportEndpoints(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("When exporting", func() {
			resp, raw := h.do(http.MethodGet, "/export", nil)

			Convey("Then a dated attachment should be returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Disposition"), ShouldContainSubstring, "timing-data-")
				So(string(raw), ShouldContainSubstring, `"exportDate"`)
			})

			Convey("And importing the export should be accepted", func() {
				resp, raw := h.do(http.MethodPost, "/import", raw)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, `"athletes":3`)
			})
		})

		Convey("When importing garbage", func() {
			resp, _ := h.do(http.MethodPost, "/import", []byte(`{"athletes": 7}`))

			Convey("Then it should be a bad request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestEventStream(t *testing.T) {
	Convey("Given a websocket client", t, func() {
		h := newHarness()
		defer h.close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
		conn, _, err := websocket.Dial(ctx, url, nil)
		So(err, ShouldBeNil)
		defer conn.CloseNow()

		var first service.Event
		So(wsjson.Read(ctx, conn, &first), ShouldBeNil)

		Convey("Then the first message should be the status", func() {
			So(first.Type, ShouldEqual, "status")
		})

		Convey("When the roster changes", func() {
			h.do(http.MethodPost, "/athletes", map[string]string{"name": "Lucía", "category": "Senior"})

			Convey("Then a roster event should arrive", func() {
				var ev service.Event
				So(wsjson.Read(ctx, conn, &ev), ShouldBeNil)
				So(ev.Type, ShouldEqual, service.EventRoster)
			})
		})
	})
}

func TestSimulatorEndpoints(t *testing.T) {
	Convey("Given a running API over the simulator", t, func() {
		h := newHarness()
		defer h.close()
		h.do(http.MethodPost, "/device/connect", nil)

		Convey("When the link is dropped", func() {
			resp, _ := h.do(http.MethodPost, "/sim/drop", nil)

			Convey("Then the request should be accepted", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When hurdles is not a number", func() {
			resp, _ := h.do(http.MethodPost, "/sim/run?hurdles=x", nil)

			Convey("Then it should be a bad request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given a server whose dependencies always fail", t, func() {
		for _, tc := range []struct {
			err  error
			want int
		}{
			{service.ErrBackpressure, http.StatusTooManyRequests},
			{service.ErrStopped, http.StatusServiceUnavailable},
			{fmt.Errorf("wrapped: %w", service.ErrUnsupported), http.StatusNotImplemented},
			{errors.New("boom"), http.StatusInternalServerError},
		} {
			srv := httptest.NewServer(api.NewServer(failing{tc.err}).Routes())
			resp, err := http.Get(srv.URL + "/status")
			So(err, ShouldBeNil)
			resp.Body.Close()
			srv.Close()
			So(resp.StatusCode, ShouldEqual, tc.want)
		}
	})
}
