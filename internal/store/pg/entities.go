package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"aexfy.org/internal/approval"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/ids"
)

// CheckUniqueness reports which of the person identifiers are already
// taken, as a field->reason map. Both the staff directory and company
// owners are checked, since they share the credential namespace.
func (s *Store) CheckUniqueness(ctx context.Context, rut, email, phone string) (map[string]string, error) {
	var rutTaken, emailTaken, phoneTaken bool
	err := s.db.QueryRowContext(ctx, `
		select
			exists(select 1 from staff where rut = $1
			       union select 1 from companies where owner_rut = $1),
			exists(select 1 from staff where lower(email) = lower($2)
			       union select 1 from companies where lower(owner_email) = lower($2)),
			($3 <> '' and exists(select 1 from staff where telefono = $3))
	`, rut, email, phone).Scan(&rutTaken, &emailTaken, &phoneTaken)
	if err != nil {
		return nil, err
	}
	conflicts := map[string]string{}
	if rutTaken {
		conflicts["rut"] = "rut ya registrado"
	}
	if emailTaken {
		conflicts["email"] = "email ya registrado"
	}
	if phoneTaken {
		conflicts["telefono"] = "telefono ya registrado"
	}
	return conflicts, nil
}

func (s *Store) CreateStaff(ctx context.Context, authID string, p approval.StaffPayload) (string, error) {
	roles, err := json.Marshal([]string{p.Role})
	if err != nil {
		return "", err
	}
	id := ids.New()
	_, err = s.db.ExecContext(ctx, `
		insert into staff (id, auth_id, email, rut, telefono, nombres, apellidos, roles, zona, status)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, authID, p.Email, p.RUT, nullIfEmpty(p.Phone), p.FirstNames, p.LastNames,
		roles, nullIfEmpty(p.Zone), identity.StatusActive)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return "", &approval.ConflictError{Fields: map[string]string{
				constraintField(pgErr.ConstraintName): "ya registrado",
			}}
		}
		return "", err
	}
	return id, nil
}

func (s *Store) CreateCompany(ctx context.Context, ownerAuthID string, p approval.CompanyPayload) (string, error) {
	id := ids.New()
	_, err := s.db.ExecContext(ctx, `
		insert into companies (id, rut, razon_social, nombre_fantasia, giro, region, ciudad, comuna,
			direccion, telefono, email, plan, zona, owner_auth_id, owner_rut, owner_email, owner_nombre)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, id, p.RUT, p.LegalName, nullIfEmpty(p.TradeName), nullIfEmpty(p.Business),
		nullIfEmpty(p.Region), nullIfEmpty(p.City), nullIfEmpty(p.District), nullIfEmpty(p.Address),
		nullIfEmpty(p.Phone), nullIfEmpty(p.Email), nullIfEmpty(p.Plan), nullIfEmpty(p.Zone),
		ownerAuthID, p.OwnerRUT, p.OwnerEmail, p.OwnerFullName())
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return "", &approval.ConflictError{Fields: map[string]string{
				constraintField(pgErr.ConstraintName): "ya registrado",
			}}
		}
		return "", err
	}
	return id, nil
}

const companyColumns = `id, rut, razon_social, coalesce(nombre_fantasia,''), coalesce(giro,''),
	coalesce(region,''), coalesce(ciudad,''), coalesce(comuna,''), coalesce(direccion,''),
	coalesce(telefono,''), coalesce(email,''), coalesce(plan,''), coalesce(zona,''),
	coalesce(owner_auth_id,''), coalesce(owner_rut,''), coalesce(owner_email,''),
	coalesce(owner_nombre,''), created_at, updated_at`

func (s *Store) GetCompany(ctx context.Context, id string) (*identity.Company, error) {
	var c identity.Company
	err := s.db.QueryRowContext(ctx, `select `+companyColumns+` from companies where id = $1`, id).Scan(
		&c.ID, &c.RUT, &c.LegalName, &c.TradeName, &c.Business, &c.Region, &c.City, &c.District,
		&c.Address, &c.Phone, &c.Email, &c.Plan, &c.Zone, &c.OwnerAuthID, &c.OwnerRUT,
		&c.OwnerEmail, &c.OwnerName, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateCompany(ctx context.Context, id string, upd identity.CompanyUpdate) (*identity.Company, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	set := func(column string, val *string) {
		if val == nil {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, nullIfEmpty(*val))
		idx++
	}
	set("nombre_fantasia", upd.TradeName)
	set("giro", upd.Business)
	set("region", upd.Region)
	set("ciudad", upd.City)
	set("comuna", upd.District)
	set("direccion", upd.Address)
	set("telefono", upd.Phone)
	set("email", upd.Email)
	set("plan", upd.Plan)
	set("zona", upd.Zone)
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update companies set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, identity.ErrNotFound
		}
	}
	return s.GetCompany(ctx, id)
}

// constraintField maps a unique index name to the conflicting field.
func constraintField(constraint string) string {
	switch {
	case strings.Contains(constraint, "rut"):
		return "rut"
	case strings.Contains(constraint, "email"):
		return "email"
	case strings.Contains(constraint, "telefono"):
		return "telefono"
	default:
		return "registro"
	}
}
