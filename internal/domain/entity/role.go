package entity

// Role is the business role of a profile.
type Role string

const (
	RoleSales      Role = "sales"
	RoleAdmin      Role = "admin"
	RoleClient     Role = "client"
	RoleMarketing  Role = "marketing"
	RoleAccounting Role = "accounting"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleSales, RoleAdmin, RoleClient, RoleMarketing, RoleAccounting:
		return true
	default:
		return false
	}
}

// DocumentType is the kind of identity document attached to a profile.
type DocumentType string

const (
	DocumentTypeDNI      DocumentType = "dni"
	DocumentTypeCE       DocumentType = "ce"
	DocumentTypeRUC      DocumentType = "ruc"
	DocumentTypePassport DocumentType = "passport"
	DocumentTypeOther    DocumentType = "other"
)

// IsValid checks if the DocumentType is a valid value.
func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentTypeDNI, DocumentTypeCE, DocumentTypeRUC, DocumentTypePassport, DocumentTypeOther:
		return true
	default:
		return false
	}
}
