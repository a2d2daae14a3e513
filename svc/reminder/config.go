package reminder

import (
	"errors"
	"time"
)

// Config holds reminder scheduling and message settings.
type Config struct {
	LeadTime    time.Duration `env:"REMINDER_LEAD_TIME" envDefault:"24h"`
	TimeZone    string        `env:"REMINDER_TIMEZONE" envDefault:"Europe/London"`
	Deduplicate bool          `env:"REMINDER_DEDUPLICATE" envDefault:"false"`

	Business BusinessProfile `envPrefix:"BUSINESS_"`
}

// BusinessProfile is what the reminder email says about the business.
type BusinessProfile struct {
	Name         string   `env:"NAME" envDefault:"Waves Hand Car Wash"`
	AddressLines []string `env:"ADDRESS" envDefault:"Tesco Extra Car Park;Tower Park, Poole, BH12 4NX" envSeparator:";"`
	Phone        string   `env:"PHONE" envDefault:"07500 182276"`
	SignOff      string   `env:"SIGN_OFF" envDefault:"The Waves Poole Team"`
}

// DefaultBusinessProfile matches the Config defaults.
func DefaultBusinessProfile() BusinessProfile {
	return BusinessProfile{
		Name:         "Waves Hand Car Wash",
		AddressLines: []string{"Tesco Extra Car Park", "Tower Park, Poole, BH12 4NX"},
		Phone:        "07500 182276",
		SignOff:      "The Waves Poole Team",
	}
}

// Location loads the configured time zone that appointment dates and times are read in.
func (c Config) Location() (*time.Location, error) {
	name := c.TimeZone
	if name == "" {
		name = "Europe/London"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Join(ErrUnknownTimeZone, err)
	}
	return loc, nil
}
