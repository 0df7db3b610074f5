package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tempora/sim/manager"
)

var _ = Describe("Monitor", func() {
	var (
		mockCtrl *gomock.Controller
		ctrl     *MockController
		p        *pipeline
		metrics  *Metrics
		monitor  *Monitor
		srv      *httptest.Server
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ctrl = NewMockController(mockCtrl)
		p = newPipeline(2)
		metrics = NewMetrics("")

		logger, _ := logtest.NewNullLogger()
		monitor = MakeBuilder().
			WithLogger(logger).
			WithMetrics(metrics).
			Build(ctrl, p.model)

		srv = httptest.NewServer(monitor.Handler())
	})

	AfterEach(func() {
		srv.Close()
		mockCtrl.Finish()
	})

	get := func(path string) (int, []byte) {
		rsp, err := srv.Client().Get(srv.URL + path)
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).ToNot(HaveOccurred())

		return rsp.StatusCode, body
	}

	post := func(path string) int {
		rsp, err := srv.Client().Post(srv.URL+path, "text/plain", nil)
		Expect(err).ToNot(HaveOccurred())
		rsp.Body.Close()

		return rsp.StatusCode
	}

	It("should pause, continue and stop the run", func() {
		ctrl.EXPECT().Pause()
		ctrl.EXPECT().Continue()
		ctrl.EXPECT().Stop()

		Expect(post("/api/pause")).To(Equal(http.StatusOK))
		Expect(post("/api/continue")).To(Equal(http.StatusOK))
		Expect(post("/api/stop")).To(Equal(http.StatusOK))
	})

	It("should only stop on POST", func() {
		code, _ := get("/api/stop")

		Expect(code).ToNot(Equal(http.StatusOK))
	})

	It("should report the status", func() {
		ctrl.EXPECT().RunID().Return("run-1")
		ctrl.EXPECT().State().Return(manager.Iterating)
		ctrl.EXPECT().Iteration().Return(int64(7))
		ctrl.EXPECT().IsPaused().Return(true)

		code, body := get("/api/status")
		Expect(code).To(Equal(http.StatusOK))

		var rsp statusRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp).To(Equal(statusRsp{
			RunID:     "run-1",
			State:     "iterating",
			Iteration: 7,
			Paused:    true,
		}))
	})

	It("should report the model time seen by the metrics", func() {
		metrics.Attach(p.dir)
		Expect(p.mgr.Run(context.Background())).To(Succeed())

		ctrl.EXPECT().RunID().Return("run-1")
		ctrl.EXPECT().State().Return(manager.Finished)
		ctrl.EXPECT().Iteration().Return(int64(2))
		ctrl.EXPECT().IsPaused().Return(false)

		_, body := get("/api/status")

		var rsp statusRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.ModelTime).To(Equal(2.0))
	})

	It("should list the actors", func() {
		_, body := get("/api/actors")

		var names []string
		Expect(json.Unmarshal(body, &names)).To(Succeed())
		Expect(names).To(ContainElements("Top.Ramp", "Top.Rec"))
	})

	It("should describe an actor", func() {
		code, body := get("/api/actor/Top.Ramp")

		Expect(code).To(Equal(http.StatusOK))
		Expect(json.Valid(body)).To(BeTrue())
	})

	It("should refuse unknown actors", func() {
		code, _ := get("/api/actor/Top.Nobody")

		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should list the progress bars", func() {
		bar := monitor.CreateProgressBar("Ramp", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		_, body := get("/api/progress")

		var bars []ProgressSnapshot
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Ramp"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		monitor.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(BeEmpty())
	})

	It("should report resource usage", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should refuse a bad profile duration", func() {
		code, _ := get("/api/profile?seconds=abc")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should serve the metrics", func() {
		code, body := get("/metrics")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("go_goroutines"))
	})

	It("should serve the page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("Builder", func() {
	It("should refuse low port numbers", func() {
		logger, hook := logtest.NewNullLogger()

		m := MakeBuilder().WithLogger(logger).WithPortNumber(80).Build(nil, nil)

		Expect(m.portNumber).To(BeZero())
		Expect(hook.LastEntry().Message).To(ContainSubstring("below 1000"))
	})

	It("should start and shut down a server", func() {
		logger, _ := logtest.NewNullLogger()
		m := MakeBuilder().WithLogger(logger).Build(nil, nil)

		url, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))

		rsp, err := http.Get(url + "/api/actors")
		Expect(err).ToNot(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.Shutdown(context.Background())).To(Succeed())
	})
})
