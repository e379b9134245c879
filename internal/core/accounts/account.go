package accounts

import (
	"time"
)

// Credential represents a locally-held account credential. The app-password
// generated at registration is stored encrypted; ciphertext and nonce never
// leave the process in decrypted form and are never logged.
type Credential struct {
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	DID                string    `json:"did" db:"did"`
	Handle             string    `json:"handle" db:"handle"`
	Email              string    `json:"email" db:"email"`
	PDSHostname        string    `json:"pdsHostname" db:"pds_hostname"`
	PasswordCiphertext []byte    `json:"-" db:"pw_ciphertext"`
	PasswordNonce      []byte    `json:"-" db:"pw_nonce"`
	TemplateID         int64     `json:"-" db:"pseudonym_template_id"`
}

// MountainTemplate is a row from the static pseudonym source table.
type MountainTemplate struct {
	ID       int64   `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Fullname string  `json:"fullname" db:"fullname"`
	Canton   string  `json:"canton" db:"canton"`
	Height   float64 `json:"height" db:"height"`
}

// Pseudonym is a generated public identity: a Swiss mountain name, a random
// initial and a muted accent color.
type Pseudonym struct {
	Template    MountainTemplate
	Letter      string
	Color       string
	DisplayName string
}

// RegisterResult is what the saga hands back on success: the provisioned
// account plus the session issued in the same transaction of work.
type RegisterResult struct {
	DID          string `json:"did"`
	Handle       string `json:"handle"`
	SessionToken string `json:"sessionToken"`
	DisplayName  string `json:"displayName"`
}
