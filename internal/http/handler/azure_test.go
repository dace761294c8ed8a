package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/http/handler"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
)

const (
	tenantGUID = "72f988bf-86f1-41af-91ab-2d7cd011db47"
	clientGUID = "0b6e4b2c-3d1a-4c9f-8f2e-6a7b8c9d0e1f"
)

var _ = Describe("AzureHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAzureSettingsService
	)

	BeforeEach(func() {
		router = gin.New()
		svc = &mockAzureSettingsService{}
		h := handler.NewAzureHandler(svc, "https://app.sigdesk.test/")

		router.GET("/azure/consent/callback", h.ConsentCallback)

		g := router.Group("/azure", withUser(adminUser()))
		g.GET("/settings", h.GetSettings)
		g.PUT("/settings", h.SaveSettings)
		g.POST("/test", h.TestConnection)
		g.GET("/consent-url", h.ConsentURL)
	})

	Describe("GetSettings", func() {
		It("returns 404 when nothing is configured", func() {
			w := doRequest(router, http.MethodGet, "/azure/settings", nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decodeBody(w)["error"]).To(Equal(service.ErrAzureNotConfigured.Error()))
		})

		It("reports whether a secret is stored without returning it", func() {
			svc.getFn = func(context.Context, int64) (*model.AzureSettings, error) {
				return &model.AzureSettings{
					TenantID:         tenantGUID,
					ClientID:         clientGUID,
					SecretCiphertext: []byte("sealed"),
					SecretNonce:      []byte("nonce"),
				}, nil
			}

			w := doRequest(router, http.MethodGet, "/azure/settings", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeBody(w)
			Expect(resp["has_secret"]).To(BeTrue())
			Expect(resp["consent_granted"]).To(BeFalse())
			Expect(w.Body.String()).NotTo(ContainSubstring("sealed"))
		})
	})

	Describe("SaveSettings", func() {
		It("rejects a tenant id that is not a GUID", func() {
			w := doRequest(router, http.MethodPut, "/azure/settings", map[string]string{
				"tenant_id": "contoso.onmicrosoft.com",
				"client_id": clientGUID,
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeBody(w)["error"]).To(Equal("tenant_id must be a GUID"))
		})

		It("passes the secret through", func() {
			svc.saveFn = func(_ context.Context, orgID int64, in service.AzureSettingsInput) (*model.AzureSettings, error) {
				Expect(orgID).To(Equal(testOrgID))
				Expect(in.ClientSecret).To(HaveValue(Equal("s3cret")))
				return &model.AzureSettings{TenantID: in.TenantID, ClientID: in.ClientID, SecretCiphertext: []byte{1}, SecretNonce: []byte{2}}, nil
			}

			w := doRequest(router, http.MethodPut, "/azure/settings", map[string]string{
				"tenant_id":     tenantGUID,
				"client_id":     clientGUID,
				"client_secret": "s3cret",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).NotTo(ContainSubstring("s3cret"))
		})

		It("returns 400 when a new app has no secret", func() {
			svc.saveFn = func(context.Context, int64, service.AzureSettingsInput) (*model.AzureSettings, error) {
				return nil, service.ErrAzureSecretRequired
			}

			w := doRequest(router, http.MethodPut, "/azure/settings", map[string]string{
				"tenant_id": tenantGUID,
				"client_id": clientGUID,
			})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("TestConnection", func() {
		It("returns the tenant details", func() {
			svc.testFn = func(context.Context, int64) (*azure.TenantInfo, error) {
				return &azure.TenantInfo{TenantID: tenantGUID, DisplayName: "Contoso"}, nil
			}

			w := doRequest(router, http.MethodPost, "/azure/test", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(w)["display_name"]).To(Equal("Contoso"))
		})

		DescribeTable("maps directory failures",
			func(err error, status int) {
				svc.testFn = func(context.Context, int64) (*azure.TenantInfo, error) {
					return nil, fmt.Errorf("%w: AADSTS0000", err)
				}

				w := doRequest(router, http.MethodPost, "/azure/test", nil)

				Expect(w.Code).To(Equal(status))
				Expect(decodeBody(w)["error"]).To(Equal(err.Error()))
			},
			Entry("bad secret", azure.ErrInvalidCredentials, http.StatusUnprocessableEntity),
			Entry("unknown tenant", azure.ErrTenantNotFound, http.StatusUnprocessableEntity),
			Entry("missing permission", azure.ErrForbidden, http.StatusUnprocessableEntity),
			Entry("graph down", azure.ErrUnavailable, http.StatusBadGateway),
		)
	})

	It("returns the consent URL", func() {
		svc.consentURLFn = func(context.Context, int64) (string, error) {
			return "https://login.microsoftonline.com/" + tenantGUID + "/adminconsent", nil
		}

		w := doRequest(router, http.MethodGet, "/azure/consent-url", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(w)["url"]).To(HavePrefix("https://login.microsoftonline.com/"))
	})

	Describe("ConsentCallback", func() {
		It("redirects to the dashboard after recording consent", func() {
			svc.completeConsentFn = func(_ context.Context, q url.Values) (int64, error) {
				Expect(q.Get("state")).To(Equal("sealed-state"))
				return testOrgID, nil
			}

			w := doRequest(router, http.MethodGet, "/azure/consent/callback?admin_consent=True&tenant="+tenantGUID+"&state=sealed-state", nil)

			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("https://app.sigdesk.test/settings/azure?consent=granted"))
		})

		DescribeTable("redirects with a reason on failure",
			func(err error, reason string) {
				svc.completeConsentFn = func(context.Context, url.Values) (int64, error) { return 0, err }

				w := doRequest(router, http.MethodGet, "/azure/consent/callback?state=x", nil)

				Expect(w.Code).To(Equal(http.StatusFound))
				loc, parseErr := url.Parse(w.Header().Get("Location"))
				Expect(parseErr).NotTo(HaveOccurred())
				Expect(loc.Query().Get("consent")).To(Equal("error"))
				Expect(loc.Query().Get("reason")).To(Equal(reason))
			},
			Entry("denied", azure.ErrConsentDenied, "denied"),
			Entry("bad state", service.ErrInvalidConsentState, "invalid_state"),
			Entry("other tenant", service.ErrConsentTenantMismatch, "tenant_mismatch"),
			Entry("unexpected", errors.New("db down"), "failed"),
		)
	})
})
