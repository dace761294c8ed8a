package signature_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/signature"
)

var _ = Describe("Placeholders", func() {
	It("extracts distinct tokens in order, tolerating whitespace and case", func() {
		html := `<p>{{name}} | {{ Title }} | {{name}} | {{  email}}</p>`
		Expect(signature.Placeholders(html)).To(Equal([]string{"name", "title", "email"}))
	})

	It("ignores malformed braces", func() {
		Expect(signature.Placeholders(`{name} {{ }} {{1abc}} {{name`)).To(BeEmpty())
	})

	It("lists unsupported tokens", func() {
		Expect(signature.Unknown(`{{name}} {{salary}} {{ssn}}`)).To(Equal([]string{"salary", "ssn"}))
		Expect(signature.Unknown(`{{name}} {{website}}`)).To(BeEmpty())
	})

	It("returns a copy of the supported list", func() {
		s := signature.Supported()
		s[0] = "changed"
		Expect(signature.Supported()[0]).To(Equal(signature.Name))
	})
})

var _ = Describe("Render", func() {
	var fields signature.Fields

	BeforeEach(func() {
		fields = signature.PreviewFields()
	})

	It("substitutes supported placeholders", func() {
		out, err := signature.Render(`<p>{{name}}, {{ title }}</p>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`<p>Jane Doe, Head of Sales</p>`))
	})

	It("renders missing values as empty strings", func() {
		out, err := signature.Render(`<p>{{mobile}}</p>`, signature.Fields{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`<p></p>`))
	})

	It("falls back to first and last name for name", func() {
		out, err := signature.Render(`<b>{{name}}</b>`, signature.Fields{FirstName: "Jane", LastName: "Doe"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`<b>Jane Doe</b>`))
	})

	It("escapes markup in user values", func() {
		fields.Title = `<script>alert(1)</script>`
		out, err := signature.Render(`<p>{{title}}</p>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("<script"))
		Expect(out).To(ContainSubstring("&lt;script&gt;"))
	})

	It("keeps ampersands escaped", func() {
		fields.Company = "Tom & Jerry"
		out, err := signature.Render(`<p>{{company}}</p>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`<p>Tom &amp; Jerry</p>`))
	})

	It("sanitizes the template itself", func() {
		out, err := signature.Render(`<p onclick="x()">{{name}}</p><script>alert(1)</script>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`<p>Jane Doe</p>`))
	})

	It("keeps a valid website link", func() {
		out, err := signature.Render(`<a href="{{website}}">web</a>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`href="https://www.contoso.com"`))
	})

	It("dials phone numbers in tel links", func() {
		out, err := signature.Render(`<a href="tel:{{phone}}">{{phone}}</a> <a href="TEL:{{ mobile }}">m</a>`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`href="tel:+15550100"`))
		Expect(out).To(ContainSubstring(`>+1 555 0100</a>`))
		Expect(out).To(ContainSubstring(`href="tel:+15550101"`))
	})

	It("drops a website with a script scheme", func() {
		fields.Website = "javascript:alert(1)"
		out, err := signature.Render(`<a href="{{website}}">web</a>{{website}}`, fields)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("javascript"))
	})

	It("rejects unknown placeholders", func() {
		_, err := signature.Render(`{{name}} {{salary}}`, fields)
		Expect(err).To(MatchError(signature.ErrUnknownPlaceholder))
		Expect(err.Error()).To(ContainSubstring("salary"))
	})
})

var _ = Describe("Sanitize", func() {
	It("keeps placeholders used as link targets", func() {
		out := signature.Sanitize(`<a href="{{website}}">Visit us</a> <a href="mailto:{{ Email }}">{{email}}</a>`)
		Expect(out).To(ContainSubstring(`href="{{website}}"`))
		Expect(out).To(ContainSubstring(`href="mailto:{{email}}"`))
		Expect(out).To(ContainSubstring(`>{{email}}</a>`))
		Expect(out).NotTo(ContainSubstring("%7B"))
	})

	It("keeps placeholders in image sources and inside URLs", func() {
		out := signature.Sanitize(`<img src="{{website}}" alt="{{company}}"><a href="https://www.linkedin.com/in/{{first_name}}{{last_name}}">in</a>`)
		Expect(out).To(ContainSubstring(`src="{{website}}"`))
		Expect(out).To(ContainSubstring(`alt="{{company}}"`))
		Expect(out).To(ContainSubstring(`href="https://www.linkedin.com/in/{{first_name}}{{last_name}}"`))
	})

	It("keeps text that runs straight into a placeholder", func() {
		Expect(signature.Sanitize(`<p>{{name}}abc</p>`)).To(Equal(`<p>{{name}}abc</p>`))
	})

	It("still strips executable content", func() {
		out := signature.Sanitize(`<p onclick="x()">{{name}}</p><script>alert(1)</script><a href="javascript:{{name}}">x</a>`)
		Expect(out).NotTo(ContainSubstring("onclick"))
		Expect(out).NotTo(ContainSubstring("script"))
		Expect(out).To(HavePrefix(`<p>{{name}}</p>`))
	})

	It("renders sanitized templates with real links", func() {
		stored := signature.Sanitize(`<a href="{{website}}">Visit us</a> <a href="tel:{{phone}}">{{phone}}</a>`)
		out, err := signature.Render(stored, signature.PreviewFields())
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`href="https://www.contoso.com"`))
		Expect(out).To(ContainSubstring(`href="tel:+15550100"`))
		Expect(out).To(ContainSubstring(`>+1 555 0100</a>`))
	})
})

var _ = DescribeTable("Dialable",
	func(in, want string) {
		Expect(signature.Dialable(in)).To(Equal(want))
	},
	Entry("international", "+1 555 0100", "+15550100"),
	Entry("punctuation", "(425) 555-0199", "4255550199"),
	Entry("extension dropped", "+49 30 1234 x12", "+49301234"),
	Entry("plus only leading", " 0049+30 ", "004930"),
	Entry("empty", "", ""),
)

var _ = Describe("FieldsFor", func() {
	It("maps directory attributes and falls back for company and email", func() {
		u := &model.DirectoryUser{
			DisplayName:       "Jane Doe",
			GivenName:         "Jane",
			Surname:           "Doe",
			UserPrincipalName: "jane@contoso.onmicrosoft.com",
			JobTitle:          "Engineer",
			Department:        "R&D",
			OfficeLocation:    "Berlin",
			BusinessPhone:     "+49 30 1234",
			MobilePhone:       "+49 170 1234",
		}

		f := signature.FieldsFor(u, "Contoso", "https://contoso.com")
		Expect(f).To(Equal(signature.Fields{
			Name:       "Jane Doe",
			FirstName:  "Jane",
			LastName:   "Doe",
			Title:      "Engineer",
			Department: "R&D",
			Company:    "Contoso",
			Email:      "jane@contoso.onmicrosoft.com",
			Phone:      "+49 30 1234",
			Mobile:     "+49 170 1234",
			Office:     "Berlin",
			Website:    "https://contoso.com",
		}))
	})

	It("prefers the directory company name", func() {
		u := &model.DirectoryUser{CompanyName: "Fabrikam", Mail: "a@fabrikam.com"}
		f := signature.FieldsFor(u, "Contoso", "")
		Expect(f.Company).To(Equal("Fabrikam"))
		Expect(f.Email).To(Equal("a@fabrikam.com"))
	})
})
