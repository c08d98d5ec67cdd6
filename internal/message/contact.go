package message

// ContactCard is a single entry of a contacts message.
type ContactCard struct {
	Addresses []ContactAddress `json:"addresses,omitempty"`
	Birthday  string           `json:"birthday,omitempty"`
	Emails    []ContactEmail   `json:"emails,omitempty"`
	Name      ContactName      `json:"name"`
	Org       *ContactOrg      `json:"org,omitempty"`
	Phones    []ContactPhone   `json:"phones,omitempty"`
	URLs      []ContactURL     `json:"urls,omitempty"`
}

type ContactAddress struct {
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Type        string `json:"type,omitempty"`
}

type ContactEmail struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
}

type ContactName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	MiddleName    string `json:"middle_name,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
}

type ContactOrg struct {
	Company    string `json:"company,omitempty"`
	Department string `json:"department,omitempty"`
	Title      string `json:"title,omitempty"`
}

type ContactPhone struct {
	Phone string `json:"phone"`
	Type  string `json:"type,omitempty"`
	WaID  string `json:"wa_id,omitempty"`
}

type ContactURL struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// SampleContact returns the fixed demonstration card sent by contact
// messages. Callers cannot supply their own details yet.
func SampleContact() ContactCard {
	return ContactCard{
		Addresses: []ContactAddress{
			{Street: "1 Hacker Way", City: "Menlo Park", State: "CA", Zip: "94025", Country: "United States", CountryCode: "us", Type: "HOME"},
			{Street: "200 Jefferson Dr", City: "Menlo Park", State: "CA", Zip: "94025", Country: "United States", CountryCode: "us", Type: "WORK"},
		},
		Birthday: "2012-08-18",
		Emails: []ContactEmail{
			{Email: "test@fb.com", Type: "WORK"},
			{Email: "test@whatsapp.com", Type: "HOME"},
		},
		Name: ContactName{
			FormattedName: "John Smith",
			FirstName:     "John",
			LastName:      "Smith",
			MiddleName:    "D.",
			Suffix:        "Jr",
			Prefix:        "Dr",
		},
		Org: &ContactOrg{Company: "WhatsApp", Department: "Design", Title: "Manager"},
		Phones: []ContactPhone{
			{Phone: "+1 (940) 555-1234", Type: "HOME"},
			{Phone: "+1 (650) 555-1234", Type: "WORK", WaID: "16505551234"},
		},
		URLs: []ContactURL{
			{URL: "https://www.facebook.com", Type: "WORK"},
			{URL: "https://www.whatsapp.com", Type: "HOME"},
		},
	}
}
