package appointments

import (
	"sort"
	"time"

	"clinic/internal/core"
)

type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
}

type Service struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Price    core.Money    `json:"price"`
	Duration time.Duration `json:"duration"`
}

// Catalog lists the doctors and services that can be booked. An empty
// catalog accepts any doctor and service name.
type Catalog struct {
	Doctors  map[string]Doctor
	Services map[string]Service
}

// DefaultCatalog is the clinic's standard list of doctors and treatments.
func DefaultCatalog() Catalog {
	return Catalog{
		Doctors: map[string]Doctor{
			"dr-aamer":    {ID: "dr-aamer", Name: "Dr. Ahmed Al-Aamer", Specialty: "Orthodontics", Phone: "+967 123 456 789"},
			"dr-fatima":   {ID: "dr-fatima", Name: "Dr. Fatima Al-Ayadi", Specialty: "Oral surgery", Phone: "+967 123 456 790"},
			"dr-mohammed": {ID: "dr-mohammed", Name: "Dr. Mohammed Al-Obaidi", Specialty: "Endodontics", Phone: "+967 123 456 791"},
		},
		Services: map[string]Service{
			"examination":  service("examination", "Full examination and consultation", 5000, 30),
			"cleaning":     service("cleaning", "Professional cleaning", 7500, 45),
			"filling":      service("filling", "Filling", 10000, 60),
			"extraction":   service("extraction", "Extraction", 8000, 30),
			"orthodontics": service("orthodontics", "Clear aligners", 20000, 90),
			"root-canal":   service("root-canal", "Root canal treatment", 15000, 90),
			"whitening":    service("whitening", "Laser whitening", 12000, 60),
			"implants":     service("implants", "Dental implant", 30000, 120),
			"crowns":       service("crowns", "Porcelain crown", 25000, 90),
		},
	}
}

func service(id, name string, cents int64, minutes int) Service {
	return Service{ID: id, Name: name, Price: core.Money{Cents: cents}, Duration: time.Duration(minutes) * time.Minute}
}

// Doctor looks a doctor up by id. With an empty catalog every id is known.
func (c Catalog) Doctor(id string) (Doctor, bool) {
	if len(c.Doctors) == 0 {
		return Doctor{ID: id, Name: id}, true
	}
	d, ok := c.Doctors[id]
	return d, ok
}

func (c Catalog) Service(id string) (Service, bool) {
	if len(c.Services) == 0 {
		return Service{ID: id, Name: id}, true
	}
	s, ok := c.Services[id]
	return s, ok
}

// DoctorList returns the doctors sorted by id.
func (c Catalog) DoctorList() []Doctor {
	out := make([]Doctor, 0, len(c.Doctors))
	for _, d := range c.Doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServiceList returns the services sorted by id.
func (c Catalog) ServiceList() []Service {
	out := make([]Service, 0, len(c.Services))
	for _, s := range c.Services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
