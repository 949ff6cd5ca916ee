package authz

const (
	RoleOwner     = "owner"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionSubmit = "submit"
)

const DomainGlobal = "global"

const (
	ObjectOpsHealth         = "ops.health"
	ObjectAirtableAuth      = "airtable.auth"
	ObjectAirtableSchema    = "airtable.schema"
	ObjectFormsForms        = "forms.forms"
	ObjectFormsSubmissions  = "forms.submissions"
	ObjectFormsPublic       = "forms.public"
	ObjectFormsPublicSubmit = "forms.public-submissions"
)
