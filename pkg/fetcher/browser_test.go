package fetcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/AteetVatan/masx-geosignal/pkg/fetcher"
)

var _ = Describe("BrowserFetcher", func() {
	It("returns the rendered document from the sidecar", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				URL string `json:"url"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			Expect(req.URL).To(Equal("https://example.com/spa"))

			json.NewEncoder(w).Encode(map[string]interface{}{
				"html":      "<html><body>rendered content</body></html>",
				"status":    200,
				"final_url": "https://example.com/spa",
			})
		}))
		defer srv.Close()

		b := fetcher.NewBrowserFetcher(srv.URL, nil)
		result, err := b.Fetch(context.Background(), "https://example.com/spa")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(result.Body)).To(ContainSubstring("rendered content"))
		Expect(result.FinalURL).To(Equal("https://example.com/spa"))
	})

	It("classifies a sidecar error response as fetch_error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		b := fetcher.NewBrowserFetcher(srv.URL, nil)
		_, err := b.Fetch(context.Background(), "https://example.com/spa")
		Expect(err).To(HaveOccurred())
		var fe *fetcher.FetchError
		Expect(asFetchError(err, &fe)).To(BeTrue())
	})
})
