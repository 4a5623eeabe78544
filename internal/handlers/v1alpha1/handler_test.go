package v1alpha1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"
	api "github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/auth"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/client"
	"github.com/kubev2v/wave-planner/pkg/requestid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const inventoryDoc = `{
  "vms": [
    {"key": "web", "name": "web01", "guest_os": "Red Hat Enterprise Linux 9 (64-bit)", "vcpu": 2, "ram_gb": 4, "provisioned_gb": 50, "tenant": "finance"},
    {"key": "db", "name": "db01", "guest_os": "Red Hat Enterprise Linux 9 (64-bit)", "vcpu": 4, "ram_gb": 16, "provisioned_gb": 200, "tenant": "finance"}
  ],
  "tenants": [{"key": "finance", "name": "Finance"}],
  "dependencies": [{"vm": "web", "depends_on": "db"}]
}`

func doJSON(srv *httptest.Server, user, method, path string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).To(BeNil())
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	Expect(err).To(BeNil())
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(auth.DefaultUserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).To(BeNil())
	DeferCleanup(resp.Body.Close)
	return resp
}

func decodeError(resp *http.Response) api.Error {
	var e api.Error
	Expect(json.NewDecoder(resp.Body).Decode(&e)).To(Succeed())
	return e
}

var _ = Describe("api handlers", Ordered, func() {
	var (
		srv     *httptest.Server
		alice   *client.Client
		ctx     context.Context
		project *api.Project
	)

	BeforeAll(func() {
		srv = newTestServer()
		alice = client.New(srv.URL, "alice", http.DefaultClient)
		ctx = context.TODO()
	})

	Context("projects", func() {
		It("creates a project with its risk configuration", func() {
			rules := classifier.DefaultConfig()
			var err error
			project, err = alice.CreateProject(ctx, api.ProjectCreate{Name: "datacenter-a", RiskConfig: &rules})
			Expect(err).To(BeNil())
			Expect(project.Status).To(Equal(api.ProjectStatusDraft))
			Expect(project.Owner).To(Equal("alice"))
			Expect(project.ActiveRiskConfigId).NotTo(BeNil())
		})

		It("rejects a duplicate name with 409", func() {
			_, err := alice.CreateProject(ctx, api.ProjectCreate{Name: "datacenter-a"})
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusConflict))
		})

		It("rejects an invalid name with the offending field", func() {
			resp := doJSON(srv, "alice", http.MethodPost, "/api/v1/projects", api.ProjectCreate{Name: "dc$$$"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decodeError(resp).Details).To(ContainElement("name"))
		})

		It("requires an operator", func() {
			resp := doJSON(srv, "", http.MethodGet, "/api/v1/projects", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("hides projects of other operators", func() {
			resp := doJSON(srv, "bob", http.MethodGet, "/api/v1/projects/"+project.Id.String(), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			projects, err := client.New(srv.URL, "bob", http.DefaultClient).ListProjects(ctx)
			Expect(err).To(BeNil())
			Expect(projects).To(BeEmpty())
		})

		It("rejects a malformed id", func() {
			resp := doJSON(srv, "alice", http.MethodGet, "/api/v1/projects/not-a-uuid", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("echoes the request id", func() {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/projects", nil)
			Expect(err).To(BeNil())
			req.Header.Set(auth.DefaultUserHeader, "alice")
			req.Header.Set(requestid.Header, "req-42")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.Header.Get(requestid.Header)).To(Equal("req-42"))
		})
	})

	Context("planning", func() {
		It("imports the inventory", func() {
			result, err := alice.ImportInventory(ctx, project.Id, []byte(inventoryDoc))
			Expect(err).To(BeNil())
			Expect(result.Vms).To(Equal(2))
			Expect(result.Dependencies).To(Equal(1))
		})

		It("rejects a dependency closing a cycle with its path", func() {
			resp := doJSON(srv, "alice", http.MethodPost, "/api/v1/projects/"+project.Id.String()+"/dependencies",
				api.Dependency{Vm: "db", DependsOn: "web"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(decodeError(resp).Details).To(ContainElements("web", "db"))
		})

		It("rejects an unknown pass kind", func() {
			resp := doJSON(srv, "alice", http.MethodPost, "/api/v1/projects/"+project.Id.String()+"/passes/optimize", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("runs every pass and builds the waves", func() {
			passes, err := alice.RunPass(ctx, project.Id, "all", api.PassRequest{})
			Expect(err).To(BeNil())
			Expect(passes).To(HaveLen(4))
			for _, p := range passes {
				Expect(p.Status).To(Equal("completed"), p.Kind)
			}

			waves, err := alice.ListWaves(ctx, project.Id)
			Expect(err).To(BeNil())
			Expect(waves).NotTo(BeEmpty())

			seq := map[string]int{}
			for _, w := range waves {
				for _, vm := range w.Vms {
					seq[vm] = w.Sequence
				}
			}
			Expect(seq).To(HaveKey("web"))
			Expect(seq).To(HaveKey("db"))
			Expect(seq["db"]).To(BeNumerically("<=", seq["web"]))

			p, err := alice.GetProject(ctx, project.Id)
			Expect(err).To(BeNil())
			Expect(p.Status).To(Equal(api.ProjectStatusPlanned))
		})

		It("exports the plan as csv", func() {
			content, err := alice.Export(ctx, project.Id, "csv")
			Expect(err).To(BeNil())
			Expect(strings.HasPrefix(string(content), "MIGRATION WAVE PLAN")).To(BeTrue())
		})

		It("rejects an unknown export format", func() {
			_, err := alice.Export(ctx, project.Id, "pdf")
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an invalid wave transition", func() {
			waves, err := alice.ListWaves(ctx, project.Id)
			Expect(err).To(BeNil())
			resp := doJSON(srv, "alice", http.MethodPost,
				"/api/v1/projects/"+project.Id.String()+"/waves/"+waves[0].Id.String()+"/transition",
				api.WaveTransition{Status: api.WaveStatusComplete})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Context("deletion", func() {
		It("deletes the project", func() {
			Expect(alice.DeleteProject(ctx, project.Id)).To(Succeed())
			_, err := alice.GetProject(ctx, project.Id)
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("answers 404 for an unknown project", func() {
			_, err := alice.ListWaves(ctx, uuid.New())
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
