package searchcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	apisearch "github.com/xeleb-ai/xeleb/api/search"
	searchcmder "github.com/xeleb-ai/xeleb/cmd/xeleb/search"
)

var _ = Describe("SearchAPI", func() {
	var (
		server *httptest.Server
		seen   url.Values
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/search" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			seen = r.URL.Query()
			if seen.Get("query") == "broken" {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"vector store down"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(apisearch.Output{
				Query: seen.Get("query"),
				Results: []apisearch.Result{{
					ID:      "doc-1",
					Score:   0.91,
					Text:    "She was crowned\nin 2018.",
					Payload: map[string]any{"filename": "bio.md"},
				}},
				Count:    1,
				Reranked: true,
			})
		}))
		DeferCleanup(server.Close)
	})

	It("sends the query and the tuning parameters", func() {
		out, err := searchcmder.SearchAPI(context.Background(), server.URL, "crowned", 20, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Count).To(Equal(1))
		Expect(out.Results[0].ID).To(Equal("doc-1"))
		Expect(seen.Get("query")).To(Equal("crowned"))
		Expect(seen.Get("limit")).To(Equal("20"))
		Expect(seen.Get("top_n")).To(Equal("3"))
	})

	It("leaves zero parameters to the server", func() {
		_, err := searchcmder.SearchAPI(context.Background(), server.URL, "crowned", 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen.Has("limit")).To(BeFalse())
		Expect(seen.Has("top_n")).To(BeFalse())
	})

	It("returns the server error body", func() {
		_, err := searchcmder.SearchAPI(context.Background(), server.URL, "broken", 0, 0)
		Expect(err).To(MatchError(ContainSubstring("HTTP 500")))
		Expect(err).To(MatchError(ContainSubstring("vector store down")))
	})

	It("prints passage ids in quiet mode", func() {
		root := &cobra.Command{Use: "xeleb"}
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(searchcmder.NewSearchCmd())

		out := &bytes.Buffer{}
		root.SetOut(out)
		root.SetArgs([]string{
			"search", "crowned", "--quiet",
			"--api-target", server.URL,
			"--config-dir", filepath.Join(GinkgoT().TempDir(), ".xeleb"),
		})
		Expect(root.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("doc-1\n"))
	})
})
