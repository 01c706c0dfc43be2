package gst

import (
	"strings"
	"unicode"

	"boqledger/pkg/models"
)

// State is an Indian state or union territory as it appears in GST registrations.
type State struct {
	Name string // lower case
	Code string // two-letter vehicle/postal code
	TIN  string // two-digit GSTIN prefix
}

// States lists every GST jurisdiction.
var States = []State{
	{"andhra pradesh", "AP", "37"},
	{"arunachal pradesh", "AR", "12"},
	{"assam", "AS", "18"},
	{"bihar", "BR", "10"},
	{"chhattisgarh", "CG", "22"},
	{"goa", "GA", "30"},
	{"gujarat", "GJ", "24"},
	{"haryana", "HR", "06"},
	{"himachal pradesh", "HP", "02"},
	{"jharkhand", "JH", "20"},
	{"karnataka", "KA", "29"},
	{"kerala", "KL", "32"},
	{"madhya pradesh", "MP", "23"},
	{"maharashtra", "MH", "27"},
	{"manipur", "MN", "14"},
	{"meghalaya", "ML", "17"},
	{"mizoram", "MZ", "15"},
	{"nagaland", "NL", "13"},
	{"odisha", "OR", "21"},
	{"punjab", "PB", "03"},
	{"rajasthan", "RJ", "08"},
	{"sikkim", "SK", "11"},
	{"tamil nadu", "TN", "33"},
	{"telangana", "TS", "36"},
	{"tripura", "TR", "16"},
	{"uttar pradesh", "UP", "09"},
	{"uttarakhand", "UK", "05"},
	{"west bengal", "WB", "19"},
	{"delhi", "DL", "07"},
	{"jammu and kashmir", "JK", "01"},
	{"ladakh", "LA", "38"},
	{"puducherry", "PY", "34"},
	{"chandigarh", "CH", "04"},
	{"andaman and nicobar islands", "AN", "35"},
	{"dadra and nagar haveli and daman and diu", "DN", "26"},
	{"lakshadweep", "LD", "31"},
}

// LookupState finds a state by name, two-letter code or GSTIN prefix.
func LookupState(s string) (State, bool) {
	key := normalize(s)
	for _, st := range States {
		if key == st.Name || strings.EqualFold(key, st.Code) || key == st.TIN {
			return st, true
		}
	}
	return State{}, false
}

// Placement is the outcome of matching a client against the company's state.
type Placement struct {
	Type         models.GSTType `json:"gst_type"`
	Interstate   bool           `json:"is_interstate"`
	ClientState  string         `json:"client_state"`
	CompanyState string         `json:"company_state"`
}

// TypeForClient chooses CGST+SGST when the client is registered in the
// company's state and IGST otherwise. The GSTIN prefix wins over the address;
// a client whose state cannot be identified is treated as interstate.
func TypeForClient(client models.Client, companyState string) Placement {
	company, _ := LookupState(companyState)
	p := Placement{
		Type:         models.GSTTypeIGST,
		Interstate:   true,
		ClientState:  "Unknown",
		CompanyState: titleCase(company.Name),
	}

	st, ok := stateFromGSTIN(client.GSTIN)
	if !ok {
		st, ok = StateFromAddress(client.BillToAddress)
	}
	if !ok {
		return p
	}

	p.ClientState = titleCase(st.Name)
	if company.Name != "" && st.Name == company.Name {
		p.Type = models.GSTTypeCGSTSGST
		p.Interstate = false
	}
	return p
}

// StateFromAddress finds the first state named in a free-form address. Full
// names match case-insensitively on word boundaries; two-letter codes only
// match as upper-case words, e.g. "Bengaluru, KA 560001".
func StateFromAddress(address string) (State, bool) {
	norm := " " + normalize(address) + " "
	for _, st := range States {
		if strings.Contains(norm, " "+st.Name+" ") {
			return st, true
		}
	}

	words := strings.FieldsFunc(address, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if len(w) != 2 || strings.ToUpper(w) != w {
			continue
		}
		for _, st := range States {
			if w == st.Code {
				return st, true
			}
		}
	}
	return State{}, false
}

func stateFromGSTIN(gstin string) (State, bool) {
	gstin = strings.TrimSpace(gstin)
	if len(gstin) < 2 {
		return State{}, false
	}
	prefix := gstin[:2]
	for _, st := range States {
		if st.TIN == prefix {
			return st, true
		}
	}
	return State{}, false
}

// normalize lower-cases s and collapses everything but letters and digits
// into single spaces.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
