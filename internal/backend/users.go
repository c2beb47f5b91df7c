package backend

import (
	"context"
	"strings"
	"time"

	"requisition-api-server/internal/auth"
	"requisition-api-server/internal/models"
	"requisition-api-server/internal/store"
)

// login checks the stored credential for an email. Only listed users can log
// in; the response carries a signed token for the websocket and HTTP layers.
func (b *Backend) login(ctx context.Context, p Params) (Result, error) {
	email := strings.ToLower(p.str("email"))
	password := p.str("password")
	if email == "" || password == "" {
		return nil, validationf("email and password required")
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, email, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, permissionf("invalid login or not in user list, ask admin to add you")
	}
	stored := strings.TrimSpace(u.PasswordHash)
	if stored == "" {
		return nil, permissionf("invalid login")
	}
	if !auth.CheckPassword(password, email, stored) {
		return nil, permissionf("invalid email or password")
	}
	token, err := auth.GenerateJWT(u.Email, u.Name, u.Role, 0)
	if err != nil {
		return nil, err
	}
	return Result{
		"user": map[string]any{
			"email":      firstOf(u.Email, email),
			"name":       u.Name,
			"role":       u.Role,
			"department": u.Department,
		},
		"token": token,
	}, nil
}

func (b *Backend) getMyProfile(ctx context.Context, p Params) (Result, error) {
	email := strings.ToLower(p.str("email", "uid"))
	if email == "" {
		return nil, permissionf("not signed in")
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, email, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, permissionf("not on the approve list")
	}
	return Result{
		"user": map[string]any{
			"email":      firstOf(u.Email, email),
			"name":       u.Name,
			"role":       u.Role,
			"department": u.Department,
		},
	}, nil
}

func (b *Backend) changePassword(ctx context.Context, p Params) (Result, error) {
	email := strings.ToLower(p.str("email"))
	currentPassword := p.str("currentPassword", "current_password")
	newPassword := p.str("newPassword", "new_password")
	if email == "" || currentPassword == "" || newPassword == "" {
		return nil, validationf("email, current password and new password required")
	}
	if len(newPassword) < 4 {
		return nil, validationf("new password must be at least 4 characters")
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, email, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("user not found")
	}
	stored := strings.TrimSpace(u.PasswordHash)
	if stored == "" {
		return nil, validationf("cannot change password")
	}
	if !auth.CheckPassword(currentPassword, email, stored) {
		return nil, permissionf("current password is incorrect")
	}
	hashed, err := auth.HashPassword(newPassword, email)
	if err != nil {
		return nil, err
	}
	if err := b.Store.Update(ctx, store.ColUsers, email, map[string]any{"passwordHash": hashed}); err != nil {
		return nil, err
	}
	return Result{"message": "Password updated"}, nil
}

func (b *Backend) addUser(ctx context.Context, p Params) (Result, error) {
	adminID := adminIdentifier(p)
	if adminID == "" {
		return nil, validationf("admin email or uid required")
	}
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("only manager or admin can add users")
	}
	email := strings.ToLower(p.str("newUserEmail", "userEmail"))
	name := p.str("name", "newUserName")
	role := p.str("role")
	if role == "" {
		role = "Employee"
	}
	defaultPassword := p.str("defaultPassword", "password")
	if email == "" {
		return nil, validationf("user email required")
	}
	if defaultPassword == "" {
		return nil, validationf("default password required")
	}
	if len(defaultPassword) < 4 {
		return nil, validationf("default password must be at least 4 characters")
	}
	var existing models.User
	exists, err := b.Store.Get(ctx, store.ColUsers, email, &existing)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, validationf("a user with this email already exists")
	}
	hashed, err := auth.HashPassword(defaultPassword, email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = email
	}
	u := models.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hashed,
		Department:   p.str("department"),
		CreatedBy:    adminID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := b.Store.Set(ctx, store.ColUsers, email, u, false); err != nil {
		return nil, err
	}
	b.audit(ctx, "user_added", adminID, map[string]any{"email": email, "role": role})
	return Result{"message": "User added. They can log in with this email and the default password, then change it."}, nil
}

func (b *Backend) listUsers(ctx context.Context, p Params) (Result, error) {
	adminID := adminIdentifier(p)
	if adminID == "" {
		return nil, validationf("admin email or uid required")
	}
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("only manager or admin can list users")
	}
	var users []models.User
	if err := b.Store.ScanAll(ctx, store.ColUsers, &users); err != nil {
		return nil, err
	}
	list := make([]map[string]any, 0, len(users))
	for _, u := range users {
		list = append(list, map[string]any{
			"uid":        u.Email,
			"email":      u.Email,
			"name":       u.Name,
			"role":       u.Role,
			"department": u.Department,
		})
	}
	return Result{"users": list}, nil
}

func (b *Backend) deleteUser(ctx context.Context, p Params) (Result, error) {
	adminID := adminIdentifier(p)
	if adminID == "" {
		return nil, validationf("admin email or uid required")
	}
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("only manager or admin can delete users")
	}
	target := p.str("userEmail", "targetEmail", "targetUid")
	if target == "" {
		return nil, validationf("user email or uid to delete is required")
	}
	if strings.Contains(target, "@") {
		target = strings.ToLower(target)
	}
	if target == adminID {
		return nil, validationf("you cannot delete your own account")
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, target, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("user not found")
	}
	if err := b.Store.Delete(ctx, store.ColUsers, target); err != nil {
		return nil, err
	}
	b.audit(ctx, "user_deleted", adminID, map[string]any{"email": target})
	return Result{"message": "User removed. They can no longer log in."}, nil
}

func (b *Backend) adminSetPassword(ctx context.Context, p Params) (Result, error) {
	adminID := adminIdentifier(p)
	if adminID == "" {
		return nil, validationf("admin email or uid required")
	}
	if !b.hasRole(ctx, adminID, "manager", "admin") {
		return nil, permissionf("only manager or admin can reset passwords")
	}
	targetEmail := strings.ToLower(p.str("targetEmail", "userEmail"))
	newPassword := p.str("newPassword", "password")
	if targetEmail == "" {
		return nil, validationf("target user email required")
	}
	if len(newPassword) < 4 {
		return nil, validationf("new password must be at least 4 characters")
	}
	var u models.User
	ok, err := b.Store.Get(ctx, store.ColUsers, targetEmail, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("user not found")
	}
	hashed, err := auth.HashPassword(newPassword, targetEmail)
	if err != nil {
		return nil, err
	}
	if err := b.Store.Update(ctx, store.ColUsers, targetEmail, map[string]any{"passwordHash": hashed}); err != nil {
		return nil, err
	}
	b.audit(ctx, "password_reset", adminID, map[string]any{"email": targetEmail})
	return Result{"message": "Password updated. User can log in with the new password."}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
