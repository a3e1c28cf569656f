package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stablehand/internal/membership"
	"stablehand/internal/routine"
	"stablehand/internal/selection/models"
	id "stablehand/pkg/domain"
)

// Seed is the YAML shape of STABLEHAND_SEED_FILE.
type Seed struct {
	OrganizationID string       `yaml:"organization_id"`
	Stables        []SeedStable `yaml:"stables"`
}

type SeedStable struct {
	ID       string        `yaml:"id"`
	Members  []SeedMember  `yaml:"members"`
	Routines []SeedRoutine `yaml:"routines"`
}

type SeedMember struct {
	UserID string       `yaml:"user_id"`
	Name   string       `yaml:"name"`
	Email  string       `yaml:"email"`
	Role   string       `yaml:"role"`
	Points []SeedPoints `yaml:"points"`
}

type SeedPoints struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Points int    `yaml:"points"`
}

type SeedRoutine struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title"`
	ScheduledDate string `yaml:"scheduled_date"`
	PointsValue   int    `yaml:"points_value"`
}

// LoadSeed reads path and registers its members and routine instances.
func LoadSeed(path string, members *membership.InMemory, routines *routine.InMemory) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return seed.Apply(members, routines)
}

func (s Seed) Apply(members *membership.InMemory, routines *routine.InMemory) error {
	orgID, err := id.ParseOrganizationID(s.OrganizationID)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, st := range s.Stables {
		stableID, err := id.ParseStableID(st.ID)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		for _, m := range st.Members {
			if err := applyMember(members, orgID, stableID, m); err != nil {
				return err
			}
		}
		for _, r := range st.Routines {
			instanceID, err := id.ParseRoutineInstanceID(r.ID)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			date, err := parseSeedDate(r.ScheduledDate)
			if err != nil {
				return err
			}
			routines.Add(models.RoutineInstance{
				ID:             instanceID,
				OrganizationID: orgID,
				StableID:       stableID,
				Title:          r.Title,
				ScheduledDate:  date,
				PointsValue:    r.PointsValue,
			})
		}
	}
	return nil
}

func applyMember(members *membership.InMemory, orgID id.OrganizationID, stableID id.StableID, m SeedMember) error {
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	role := membership.RoleMember
	switch m.Role {
	case "", string(membership.RoleMember):
	case string(membership.RoleManager):
		role = membership.RoleManager
	default:
		return fmt.Errorf("seed: unknown role %q for %s", m.Role, m.UserID)
	}
	members.AddMember(orgID, stableID, models.Member{UserID: userID, Name: m.Name, Email: m.Email}, role)

	for _, p := range m.Points {
		from, err := parseSeedDate(p.From)
		if err != nil {
			return err
		}
		to, err := parseSeedDate(p.To)
		if err != nil {
			return err
		}
		members.RecordPoints(stableID, userID, from, to, p.Points)
	}
	return nil
}

func parseSeedDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("seed: invalid date %q", s)
	}
	return t, nil
}
