package models

// Country is an onboarding destination with the visas offered for it.
type Country struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Visas []string `json:"visas"`
}

// Countries is the fixed onboarding catalog.
var Countries = []Country{
	{ID: "USA", Name: "Estados Unidos", Visas: []string{"EB2-NIW", "EB3-Skilled", "H1B", "F1-Student"}},
	{ID: "Canada", Name: "Canadá", Visas: []string{"Express Entry", "Study Permit", "Provincial Nominee (PNP)"}},
	{ID: "Portugal", Name: "Portugal / Europa", Visas: []string{"Visto D7", "Visto D8 (Nômade)", "Visto CPLP", "Blue Card UE"}},
	{ID: "Australia", Name: "Austrália", Visas: []string{"Skilled Independent (189)", "Student Visa (500)"}},
}

// Professions offered at onboarding.
var Professions = []string{"Enfermagem", "Medicina", "Engenharia", "TI / Tech", "Direito", "Outro"}

// DocumentTypes offered by the document review screen.
var DocumentTypes = []string{"Passaporte", "Diploma", "Certificado IELTS/TOEFL", "Carta de Oferta", "Extrato Bancário", "Outro"}

// FindCountry returns the catalog entry for id.
func FindCountry(id string) (Country, bool) {
	for _, c := range Countries {
		if c.ID == id {
			return c, true
		}
	}
	return Country{}, false
}

// OffersVisa reports whether visa is in the catalog for this country.
func (c Country) OffersVisa(visa string) bool {
	for _, v := range c.Visas {
		if v == visa {
			return true
		}
	}
	return false
}

// IsProfession reports whether p is in the profession catalog.
func IsProfession(p string) bool {
	for _, known := range Professions {
		if known == p {
			return true
		}
	}
	return false
}
