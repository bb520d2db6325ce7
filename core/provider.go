package core

// Provider describes a federated identity provider
type Provider struct {
	ID           string
	Name         string
	IssuerURL    string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	ACRValues    string // required assurance level, e.g. https://www.spid.gov.it/SpidL2
}
