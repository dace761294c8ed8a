package azure_test

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/azure"
)

var _ = Describe("AdminConsentURL", func() {
	It("targets the organizations endpoint by default", func() {
		raw := azure.AdminConsentURL("client-1", "https://app.example.com/cb", "st4te", "")
		u, err := url.Parse(raw)
		Expect(err).NotTo(HaveOccurred())

		Expect(u.Host).To(Equal("login.microsoftonline.com"))
		Expect(u.Path).To(Equal("/organizations/v2.0/adminconsent"))
		Expect(u.Query().Get("client_id")).To(Equal("client-1"))
		Expect(u.Query().Get("redirect_uri")).To(Equal("https://app.example.com/cb"))
		Expect(u.Query().Get("state")).To(Equal("st4te"))
		Expect(u.Query().Get("scope")).To(Equal(azure.GraphScope))
	})

	It("targets a specific tenant", func() {
		raw := azure.AdminConsentURL("client-1", "https://app.example.com/cb", "", testTenantID)
		u, err := url.Parse(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Path).To(Equal("/" + testTenantID + "/v2.0/adminconsent"))
		Expect(u.Query().Has("state")).To(BeFalse())
	})
})

var _ = Describe("ParseConsentCallback", func() {
	It("returns tenant and state on success", func() {
		res, err := azure.ParseConsentCallback(url.Values{
			"tenant":        {"72F988BF-86F1-41AF-91AB-2D7CD011DB47"},
			"admin_consent": {"True"},
			"state":         {"abc"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(&azure.ConsentResult{TenantID: testTenantID, State: "abc"}))
	})

	It("surfaces the error and first description line", func() {
		_, err := azure.ParseConsentCallback(url.Values{
			"error":             {"access_denied"},
			"error_description": {"AADSTS65004: User declined to consent.\nTrace ID: 123"},
		})
		Expect(err).To(MatchError(azure.ErrConsentDenied))
		Expect(err.Error()).To(ContainSubstring("access_denied: AADSTS65004: User declined to consent."))
		Expect(err.Error()).NotTo(ContainSubstring("Trace ID"))
	})

	It("requires the admin_consent flag", func() {
		_, err := azure.ParseConsentCallback(url.Values{"tenant": {testTenantID}})
		Expect(err).To(MatchError(azure.ErrConsentDenied))
	})

	It("rejects a malformed tenant", func() {
		_, err := azure.ParseConsentCallback(url.Values{"tenant": {"contoso"}, "admin_consent": {"True"}})
		Expect(err).To(MatchError(azure.ErrConsentDenied))
	})
})
