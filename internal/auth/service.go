package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSignup      = errors.New("invalid signup request")
)

type DoctorAccounts interface {
	Create(ctx context.Context, d *doctor.Doctor) error
	GetByEmail(ctx context.Context, email string) (*doctor.Doctor, error)
}

type PatientAccounts interface {
	Create(ctx context.Context, p *patient.Patient) error
	GetByEmail(ctx context.Context, email string) (*patient.Patient, error)
}

type Service struct {
	doctors  DoctorAccounts
	patients PatientAccounts
	issuer   *TokenIssuer
}

func NewService(doctors DoctorAccounts, patients PatientAccounts, issuer *TokenIssuer) *Service {
	return &Service{doctors: doctors, patients: patients, issuer: issuer}
}

type Signup struct {
	Name     string
	Email    string
	Password string
}

func (s Signup) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSignup)
	}
	if !strings.Contains(s.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidSignup)
	}
	if len(s.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidSignup)
	}
	return nil
}

// RegisterPatient creates a patient account and signs them in.
func (s *Service) RegisterPatient(ctx context.Context, su Signup) (*patient.Patient, string, error) {
	if err := su.validate(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	p := &patient.Patient{
		Name:         strings.TrimSpace(su.Name),
		Email:        normalizeEmail(su.Email),
		PasswordHash: string(hash),
	}
	if err := s.patients.Create(ctx, p); err != nil {
		if errors.Is(err, patient.ErrEmailTaken) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create patient: %w", err)
	}

	token, err := s.issuer.Generate(p.ID, RolePatient)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return p, token, nil
}

// RegisterDoctor creates an unverified doctor account; the profile becomes
// publicly listed only after onboarding completes.
func (s *Service) RegisterDoctor(ctx context.Context, su Signup) (*doctor.Doctor, string, error) {
	if err := su.validate(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	d := &doctor.Doctor{
		Name:         strings.TrimSpace(su.Name),
		Email:        normalizeEmail(su.Email),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		if errors.Is(err, doctor.ErrEmailTaken) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create doctor: %w", err)
	}

	token, err := s.issuer.Generate(d.ID, RoleDoctor)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return d, token, nil
}

// LoginPatient checks credentials and returns a signed token.
func (s *Service) LoginPatient(ctx context.Context, email, password string) (*patient.Patient, string, error) {
	p, err := s.patients.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load patient: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(p.ID, RolePatient)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return p, token, nil
}

func (s *Service) LoginDoctor(ctx context.Context, email, password string) (*doctor.Doctor, string, error) {
	d, err := s.doctors.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, doctor.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load doctor: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(d.ID, RoleDoctor)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return d, token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
