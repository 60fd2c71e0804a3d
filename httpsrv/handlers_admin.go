package httpsrv

import (
	"context"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/farmkeep/farmkeep/auth"
)

// AdminController exposes account management. The whole group is mounted
// behind RequireRoles(RoleAdmin).
type AdminController struct {
	auther *auth.Auther
	repo   auth.RepositoryManager
	logger auth.Logger
}

func NewAdminController(auther *auth.Auther, repo auth.RepositoryManager, logger auth.Logger) *AdminController {
	return &AdminController{
		auther: auther,
		repo:   repo,
		logger: logger,
	}
}

func (a *AdminController) Register(app fiber.Router) {
	app.Get("/users", a.ListUsers)
	app.Get("/users/:id", a.GetUser)
	app.Post("/users/:id/suspend", a.SuspendUser)
	app.Post("/users/:id/reinstate", a.ReinstateUser)
}

var errBadRoleFilter = goerrors.New("unknown role filter", goerrors.CategoryBadInput).
	WithTextCode("INVALID_ROLE")

func (a *AdminController) ListUsers(c *fiber.Ctx) error {
	role := auth.UserRole(c.Query("role"))
	if role != "" && !auth.IsValidRole(role) {
		return respondError(c, a.logger, errBadRoleFilter)
	}

	users, err := a.repo.Users().ListUsers(c.UserContext(), role)
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

func (a *AdminController) GetUser(c *fiber.Ctx) error {
	user, err := a.repo.Users().GetByIdentifier(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(user)
}

func (a *AdminController) SuspendUser(c *fiber.Ctx) error {
	return a.transition(c, a.repo.Users().Suspend)
}

func (a *AdminController) ReinstateUser(c *fiber.Ctx) error {
	return a.transition(c, a.repo.Users().Reinstate)
}

type statusTransition func(ctx context.Context, actor auth.ActorRef, user *auth.User) (*auth.User, error)

func (a *AdminController) transition(c *fiber.Ctx, apply statusTransition) error {
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return respondError(c, a.logger, auth.ErrTokenMalformed)
	}

	user, err := a.repo.Users().GetByIdentifier(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, a.logger, err)
	}

	actor := auth.ActorRef{ID: claims.UserID(), Type: string(auth.RoleAdmin)}

	updated, err := apply(c.UserContext(), actor, user)
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(updated)
}
