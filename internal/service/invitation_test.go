package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

var _ = Describe("InvitationService", func() {
	const orgID = int64(100)

	var (
		svc    service.InvitationService
		stores *mockStoreProvider
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = newMockStoreProvider()
		svc = service.NewInvitationService(&mockTxRunner{stores: stores}, stores.invitations, stores.users, "https://app.sigdesk.test")
	})

	Describe("Create", func() {
		It("creates a pending invitation with a token and link", func() {
			var created *model.Invitation
			stores.invitations.createFn = func(_ context.Context, inv *model.Invitation) error {
				created = inv
				return nil
			}

			inv, link, err := svc.Create(ctx, orgID, "  New.Hire@Contoso.com ", "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv).To(Equal(created))
			Expect(inv.Email).To(Equal("new.hire@contoso.com"))
			Expect(inv.Role).To(Equal(model.RoleMember))
			Expect(inv.Status).To(Equal(model.InvitationStatusPending))
			Expect(inv.Token).NotTo(BeEmpty())
			Expect(*inv.InvitedBy).To(Equal(int64(1)))
			Expect(inv.ExpiresAt).To(BeTemporally("~", time.Now().Add(7*24*time.Hour), time.Minute))
			Expect(link).To(HavePrefix("https://app.sigdesk.test/invite?token="))
		})

		It("generates a different token each time", func() {
			a, _, err := svc.Create(ctx, orgID, "a@contoso.com", model.RoleAdmin, 1)
			Expect(err).NotTo(HaveOccurred())
			b, _, err := svc.Create(ctx, orgID, "b@contoso.com", model.RoleAdmin, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Token).NotTo(Equal(b.Token))
		})

		It("rejects an invalid email", func() {
			_, _, err := svc.Create(ctx, orgID, "not-an-email", model.RoleMember, 1)
			Expect(err).To(MatchError(validate.ErrInvalidEmail))
		})

		It("rejects an unknown role", func() {
			_, _, err := svc.Create(ctx, orgID, "a@contoso.com", model.Role("owner"), 1)
			Expect(err).To(MatchError(service.ErrInvalidRole))
		})

		It("rejects someone who is already a member", func() {
			stores.users.getByEmailFn = func(_ context.Context, email string) (*model.User, error) {
				return &model.User{ID: 7, Email: email, OrganizationID: int64Ptr(orgID)}, nil
			}

			_, _, err := svc.Create(ctx, orgID, "a@contoso.com", model.RoleMember, 1)
			Expect(err).To(MatchError(service.ErrAlreadyMember))
		})

		It("rejects a duplicate pending invitation", func() {
			stores.invitations.getPendingByEmailFn = func(context.Context, int64, string) (*model.Invitation, error) {
				return &model.Invitation{Status: model.InvitationStatusPending, ExpiresAt: time.Now().Add(time.Hour)}, nil
			}

			_, _, err := svc.Create(ctx, orgID, "a@contoso.com", model.RoleMember, 1)
			Expect(err).To(MatchError(service.ErrInvitePendingExists))
		})
	})

	Describe("ValidateToken", func() {
		DescribeTable("explains why a token is unusable",
			func(status model.InvitationStatus, expiresIn time.Duration, want error) {
				stores.invitations.getByTokenFn = func(_ context.Context, token string) (*model.Invitation, error) {
					return &model.Invitation{Token: token, Status: status, ExpiresAt: time.Now().Add(expiresIn)}, nil
				}

				_, err := svc.ValidateToken(ctx, "tok")
				Expect(err).To(MatchError(want))
			},
			Entry("accepted", model.InvitationStatusAccepted, time.Hour, service.ErrInviteAlreadyUsed),
			Entry("revoked", model.InvitationStatusRevoked, time.Hour, service.ErrInviteRevoked),
			Entry("expired status", model.InvitationStatusExpired, time.Hour, service.ErrInviteExpired),
			Entry("pending past expiry", model.InvitationStatusPending, -time.Hour, service.ErrInviteExpired),
		)

		It("returns not found for an empty or unknown token", func() {
			_, err := svc.ValidateToken(ctx, "")
			Expect(err).To(MatchError(service.ErrInviteNotFound))
			_, err = svc.ValidateToken(ctx, "missing")
			Expect(err).To(MatchError(service.ErrInviteNotFound))
		})
	})

	Describe("Accept", func() {
		var (
			inv  *model.Invitation
			user *model.User
		)

		BeforeEach(func() {
			inv = &model.Invitation{
				ID:             55,
				OrganizationID: orgID,
				Email:          "new.hire@contoso.com",
				Role:           model.RoleAdmin,
				Status:         model.InvitationStatusPending,
				ExpiresAt:      time.Now().Add(time.Hour),
			}
			user = &model.User{ID: 9, Email: "New.Hire@contoso.com", Role: model.RoleMember}
			stores.invitations.getValidByTokenFn = func(context.Context, string) (*model.Invitation, error) {
				return inv, nil
			}
			stores.invitations.acceptFn = func(_ context.Context, id, userID int64) (*model.Invitation, error) {
				accepted := *inv
				accepted.Status = model.InvitationStatusAccepted
				accepted.AcceptedBy = &userID
				return &accepted, nil
			}
		})

		It("joins the user to the organization with the invited role", func() {
			var joinedOrg *int64
			var joinedRole model.Role
			stores.users.setMembershipFn = func(_ context.Context, _ int64, org *int64, role model.Role) error {
				joinedOrg, joinedRole = org, role
				return nil
			}

			accepted, err := svc.Accept(ctx, "tok", user)
			Expect(err).NotTo(HaveOccurred())
			Expect(accepted.Status).To(Equal(model.InvitationStatusAccepted))
			Expect(*joinedOrg).To(Equal(orgID))
			Expect(joinedRole).To(Equal(model.RoleAdmin))
			Expect(user.BelongsTo(orgID)).To(BeTrue())
			Expect(user.IsAdmin()).To(BeTrue())
		})

		It("rejects a different email", func() {
			user.Email = "someone.else@contoso.com"

			_, err := svc.Accept(ctx, "tok", user)
			Expect(err).To(MatchError(service.ErrEmailMismatch))
		})

		It("rejects a user who already has an organization", func() {
			user.OrganizationID = int64Ptr(200)

			_, err := svc.Accept(ctx, "tok", user)
			Expect(err).To(MatchError(service.ErrAlreadyMember))
		})

		It("loses the race to a concurrent accept", func() {
			stores.invitations.acceptFn = func(context.Context, int64, int64) (*model.Invitation, error) {
				return nil, store.ErrNotFound
			}

			_, err := svc.Accept(ctx, "tok", user)
			Expect(err).To(MatchError(service.ErrInviteAlreadyUsed))
			Expect(user.OrganizationID).To(BeNil())
		})
	})

	Describe("Revoke", func() {
		It("maps a missing invitation", func() {
			_, err := svc.Revoke(ctx, orgID, 1)
			Expect(err).To(MatchError(service.ErrInviteNotFound))
		})

		It("returns the revoked invitation", func() {
			stores.invitations.revokeFn = func(_ context.Context, org, id int64) (*model.Invitation, error) {
				Expect(org).To(Equal(orgID))
				return &model.Invitation{ID: id, Status: model.InvitationStatusRevoked}, nil
			}

			inv, err := svc.Revoke(ctx, orgID, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(inv.Status).To(Equal(model.InvitationStatusRevoked))
		})
	})
})
