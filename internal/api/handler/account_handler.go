package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
)

// AccountHandler handles HTTP requests for account operations. Domain errors
// are returned unchanged and rendered by the central error handler.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// --- Request / Response types ---

// accountRequest is the create/update payload. Absent and null fields stay
// nil so update can tell "not sent" from "sent empty".
type accountRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirmPassword"`
}

type accountResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r accountRequest) toInput() domain.AccountInput {
	return domain.AccountInput{
		Name:            r.Name,
		Email:           r.Email,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}
}

func toResponse(a *domain.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Email: a.Email}
}

// Create handles POST /users.
//
// @Summary      Create an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      accountRequest  true  "Account details"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /users [post]
func (h *AccountHandler) Create(c echo.Context) error {
	req, err := bindAccount(c)
	if err != nil {
		return err
	}

	account, err := h.service.Create(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(account))
}

// List handles GET /users.
//
// @Summary      List accounts
// @Tags         users
// @Produce      json
// @Success      200  {array}   accountResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users [get]
func (h *AccountHandler) List(c echo.Context) error {
	accounts, err := h.service.GetAll(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /users/:id.
//
// @Summary      Get an account
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "Account id"
// @Success      200  {object}  accountResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *AccountHandler) Get(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	account, err := h.service.GetOne(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(account))
}

// Update handles PUT and PATCH /users/:id. Only the fields present in the
// body are changed.
//
// @Summary      Update an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      int             true  "Account id"
// @Param        body  body      accountRequest  true  "Fields to change"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /users/{id} [put]
// @Router       /users/{id} [patch]
func (h *AccountHandler) Update(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	req, err := bindAccount(c)
	if err != nil {
		return err
	}

	account, err := h.service.Update(c.Request().Context(), id, req.toInput())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(account))
}

// Delete handles DELETE /users/:id and returns the removed account.
//
// @Summary      Delete an account
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "Account id"
// @Success      200  {object}  accountResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users/{id} [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	account, err := h.service.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(account))
}

func bindAccount(c echo.Context) (accountRequest, error) {
	var req accountRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid payload").SetInternal(err)
	}
	return req, nil
}

// accountID parses the :id path parameter. Anything that is not a positive
// integer cannot name an account.
func accountID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrAccountNotFound
	}
	return id, nil
}

// ErrorResponse is the canonical error envelope for all API errors.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}
