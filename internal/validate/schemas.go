package validate

import "github.com/splax/crate/internal/domain"

var (
	emailRule      = Rule{Type: String, Required: true, Format: FormatEmail}
	nonEmptyString = Rule{Type: String, Required: true, MinLength: 1}
	roleEnum       = []string{string(domain.RoleArtist), string(domain.RoleListener)}
)

// SignupSchema describes POST /user/signup.
var SignupSchema = Schema{
	"email":     emailRule,
	"password":  nonEmptyString,
	"firstName": nonEmptyString,
	"lastName":  nonEmptyString,
	"role":      {Type: String, Required: true, Enum: roleEnum},
}

// LoginSchema describes POST /user/login.
var LoginSchema = Schema{
	"email":    emailRule,
	"password": nonEmptyString,
}

// ItemSchema describes item create and update bodies.
var ItemSchema = Schema{
	"title":       {Type: String, Required: true},
	"description": {Type: String},
	"isPublic":    {Type: Boolean},
}
