package models

// Client is a workshop customer.
type Client struct {
	SyncMeta
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

func (*Client) Kind() EntityType { return EntityClient }

// ClientPatch is a merge patch: nil fields are left unchanged.
type ClientPatch struct {
	Name     *string
	Phone    *string
	Email    *string
	Document *string
	Address  *string
	Notes    *string
}

func (p ClientPatch) Apply(c *Client) {
	set(&c.Name, p.Name)
	set(&c.Phone, p.Phone)
	set(&c.Email, p.Email)
	set(&c.Document, p.Document)
	set(&c.Address, p.Address)
	set(&c.Notes, p.Notes)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
