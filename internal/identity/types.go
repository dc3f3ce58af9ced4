package identity

import "time"

// Account statuses as stored by the identity provider.
const (
	StatusActive   = "activo"
	StatusInactive = "inactivo"
)

// Identity is a read-through snapshot of an authenticated staff member.
// The provisioning collaborator owns the record; the engine re-fetches
// roles and zone at least once per protected request and never trusts a
// client-held token for them.
type Identity struct {
	ID           string    `json:"id"`
	AuthID       string    `json:"auth_id,omitempty"`
	Email        string    `json:"email"`
	RUT          string    `json:"rut,omitempty"`
	FirstNames   string    `json:"nombres,omitempty"`
	LastNames    string    `json:"apellidos,omitempty"`
	Roles        []string  `json:"roles"`
	Zone         string    `json:"zona,omitempty"`
	Status       string    `json:"estado"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionRecord is the single currently-valid session for an identity.
// Writing a new record implicitly invalidates any prior token for that
// identity; there is never more than one record per identity.
type SessionRecord struct {
	IdentityID string    `json:"identity_id"`
	Token      string    `json:"token"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Company is a client company record in the directory. The owner fields
// point at the credential the provisioner issued for the company owner.
type Company struct {
	ID          string    `json:"id"`
	RUT         string    `json:"rut"`
	LegalName   string    `json:"razon_social"`
	TradeName   string    `json:"nombre_fantasia,omitempty"`
	Business    string    `json:"giro,omitempty"`
	Region      string    `json:"region,omitempty"`
	City        string    `json:"ciudad,omitempty"`
	District    string    `json:"comuna,omitempty"`
	Address     string    `json:"direccion,omitempty"`
	Phone       string    `json:"telefono,omitempty"`
	Email       string    `json:"email,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	Zone        string    `json:"zona,omitempty"`
	OwnerAuthID string    `json:"owner_auth_id,omitempty"`
	OwnerRUT    string    `json:"owner_rut,omitempty"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
	OwnerName   string    `json:"owner_nombre,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompanyUpdate carries optional field changes for a company. Nil fields
// are left untouched.
type CompanyUpdate struct {
	TradeName *string
	Business  *string
	Region    *string
	City      *string
	District  *string
	Address   *string
	Phone     *string
	Email     *string
	Plan      *string
	Zone      *string
}

// Actor is the per-request snapshot populated by the session guard and
// passed explicitly to downstream components. It replaces any hidden
// session dictionary: everything a handler may rely on is here.
type Actor struct {
	ID    string
	Email string
	Roles []string
	Zone  string
	Token string
}
