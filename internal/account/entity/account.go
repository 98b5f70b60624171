package entity

import "time"

// Account is a row in the `accounts` table. Username and email address are
// stored lowercased; PasswordHash never leaves the service.
type Account struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	EmailAddress  string    `db:"email_address" json:"emailAddress"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	FirstName     string    `db:"first_name" json:"firstName,omitempty"`
	LastName      string    `db:"last_name" json:"lastName,omitempty"`
	Phone         string    `db:"phone" json:"phone,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	Profile       *Profile  `db:"-" json:"profile,omitempty"`
}

// Profile is the optional `profiles` row owned by one account.
type Profile struct {
	AccountID  string `db:"account_id" json:"-"`
	Headline   string `db:"headline" json:"headline,omitempty"`
	Bio        string `db:"bio" json:"bio,omitempty"`
	City       string `db:"city" json:"city,omitempty"`
	Country    string `db:"country" json:"country,omitempty"`
	PictureURL string `db:"picture_url" json:"pictureUrl,omitempty"`

	// Account is the owning account; not persisted, not serialized.
	Account *Account `db:"-" json:"-"`
}

// AttachProfile links p to a in both directions.
func (a *Account) AttachProfile(p *Profile) {
	p.AccountID = a.ID
	p.Account = a
	a.Profile = p
}
