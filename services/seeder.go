package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepmate/backend/models"
	"golang.org/x/crypto/bcrypt"
)

type seedStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetInterviewerByName(ctx context.Context, name string) (*models.Interviewer, error)
	CreateInterviewer(ctx context.Context, interviewer *models.Interviewer) error
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	CreateCompany(ctx context.Context, company *models.Company) error
	CreateJob(ctx context.Context, job *models.Job) error
}

// DatabaseSeeder inserts demo users, interviewers, companies and jobs
type DatabaseSeeder struct {
	repo seedStore
	now  func() time.Time
}

func NewDatabaseSeeder(repo seedStore) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo, now: time.Now}
}

type seedCompany struct {
	company models.Company
	jobs    []models.Job
}

func intPtr(v int) *int { return &v }

var defaultInterviewers = []models.Interviewer{
	{
		Name:        "Sarah Chen",
		Description: "Experienced technical recruiter specializing in software engineering roles",
		Personality: "encouraging",
		Gender:      "female",
		Industry:    "Technology",
		IsActive:    true,
	},
	{
		Name:        "Marcus Johnson",
		Description: "Senior engineering manager who runs bar-raiser interviews",
		Personality: "strict",
		Gender:      "male",
		Industry:    "Technology",
		IsActive:    true,
	},
	{
		Name:        "Dr. Emily Rodriguez",
		Description: "Lead data scientist with expertise in machine learning and statistical analysis",
		Personality: "technical",
		Gender:      "female",
		Industry:    "Data Science",
		IsActive:    true,
	},
	{
		Name:        "David Kim",
		Description: "Product leader focused on collaboration, ownership and communication",
		Personality: "balanced",
		Gender:      "male",
		Industry:    "Product Management",
		IsActive:    true,
	},
}

func defaultCompanies() []seedCompany {
	return []seedCompany{
		{
			company: models.Company{
				Name:        "Northwind Labs",
				Industry:    "Technology",
				Website:     "https://northwind.example.com",
				Location:    "San Francisco, CA",
				Size:        "201-500",
				Description: "Developer tooling for distributed teams.",
			},
			jobs: []models.Job{
				{
					Title:          "Backend Engineer",
					Description:    "Design and operate Go services backed by PostgreSQL. Own APIs end to end, from schema design to on-call.",
					Location:       "San Francisco, CA",
					EmploymentType: models.EmploymentFullTime,
					Level:          models.LevelMid,
					Remote:         true,
					SalaryMin:      intPtr(140000),
					SalaryMax:      intPtr(180000),
					Currency:       "USD",
					Skills:         []string{"Go", "PostgreSQL", "REST", "Docker", "Kubernetes"},
				},
				{
					Title:          "Frontend Engineer",
					Description:    "Build accessible React interfaces and collaborate closely with design.",
					Location:       "San Francisco, CA",
					EmploymentType: models.EmploymentFullTime,
					Level:          models.LevelSenior,
					SalaryMin:      intPtr(150000),
					SalaryMax:      intPtr(195000),
					Currency:       "USD",
					Skills:         []string{"TypeScript", "React", "CSS", "Testing"},
				},
			},
		},
		{
			company: models.Company{
				Name:        "Bluefin Analytics",
				Industry:    "Data Science",
				Website:     "https://bluefin.example.com",
				Location:    "New York, NY",
				Size:        "51-200",
				Description: "Forecasting and analytics for retail supply chains.",
			},
			jobs: []models.Job{
				{
					Title:          "Data Scientist",
					Description:    "Develop demand forecasting models and communicate findings to stakeholders.",
					Location:       "New York, NY",
					EmploymentType: models.EmploymentFullTime,
					Level:          models.LevelMid,
					Remote:         true,
					SalaryMin:      intPtr(130000),
					SalaryMax:      intPtr(170000),
					Currency:       "USD",
					Skills:         []string{"Python", "SQL", "Statistics", "Machine Learning"},
				},
				{
					Title:          "Data Engineering Intern",
					Description:    "Help build batch pipelines and data quality checks.",
					Location:       "New York, NY",
					EmploymentType: models.EmploymentInternship,
					Level:          models.LevelEntry,
					Currency:       "USD",
					Skills:         []string{"Python", "SQL", "Airflow"},
				},
			},
		},
		{
			company: models.Company{
				Name:        "Cobalt Health",
				Industry:    "Healthcare",
				Website:     "https://cobalt.example.com",
				Location:    "Austin, TX",
				Size:        "1001-5000",
				Description: "Patient scheduling and telehealth platform.",
			},
			jobs: []models.Job{
				{
					Title:          "Site Reliability Engineer",
					Description:    "Keep a HIPAA compliant platform fast and available. Automate infrastructure and improve observability.",
					Location:       "Austin, TX",
					EmploymentType: models.EmploymentFullTime,
					Level:          models.LevelSenior,
					SalaryMin:      intPtr(155000),
					SalaryMax:      intPtr(200000),
					Currency:       "USD",
					Skills:         []string{"Terraform", "AWS", "Prometheus", "Linux", "Go"},
				},
				{
					Title:          "Product Manager",
					Description:    "Own the clinician scheduling experience from discovery to launch.",
					Location:       "Remote",
					EmploymentType: models.EmploymentContract,
					Level:          models.LevelLead,
					Remote:         true,
					Currency:       "USD",
					Skills:         []string{"Roadmapping", "User Research", "Analytics"},
				},
			},
		},
	}
}

// SeedDatabase is idempotent: existing rows are matched by email or name and skipped
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{Email: "test@example.com", Password: string(hashedPassword), FullName: "Test User", Role: "user"},
		{Email: "demo@example.com", Password: string(hashedPassword), FullName: "Demo User", Role: "user"},
	}
	for _, user := range users {
		if err := s.seedUser(ctx, user); err != nil {
			slog.Error("Failed to seed user", "email", user.Email, "error", err)
		}
	}

	for _, iv := range defaultInterviewers {
		if err := s.seedInterviewer(ctx, iv); err != nil {
			slog.Error("Failed to seed interviewer", "name", iv.Name, "error", err)
		}
	}

	for i, sc := range defaultCompanies() {
		if err := s.seedCompany(ctx, sc, i); err != nil {
			slog.Error("Failed to seed company", "name", sc.company.Name, "error", err)
		}
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}
	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	slog.Info("Created user", "email", user.Email)
	return nil
}

func (s *DatabaseSeeder) seedInterviewer(ctx context.Context, iv models.Interviewer) error {
	existing, err := s.repo.GetInterviewerByName(ctx, iv.Name)
	if err != nil {
		return fmt.Errorf("error checking interviewer %s: %w", iv.Name, err)
	}
	if existing != nil {
		return nil
	}
	if err := s.repo.CreateInterviewer(ctx, &iv); err != nil {
		return fmt.Errorf("failed to create interviewer %s: %w", iv.Name, err)
	}
	slog.Info("Created interviewer", "name", iv.Name)
	return nil
}

// seedCompany creates the company and its jobs only when the company is new
func (s *DatabaseSeeder) seedCompany(ctx context.Context, sc seedCompany, offset int) error {
	existing, err := s.repo.GetCompanyByName(ctx, sc.company.Name)
	if err != nil {
		return fmt.Errorf("error checking company %s: %w", sc.company.Name, err)
	}
	if existing != nil {
		slog.Info("Company already exists, skipping", "name", sc.company.Name)
		return nil
	}

	company := sc.company
	if err := s.repo.CreateCompany(ctx, &company); err != nil {
		return fmt.Errorf("failed to create company %s: %w", company.Name, err)
	}

	now := s.now()
	for i, job := range sc.jobs {
		job.CompanyID = company.ID
		job.IsActive = true
		// stagger so newest-first ordering is stable
		job.PostedAt = now.Add(-time.Duration(offset*len(sc.jobs)+i) * 24 * time.Hour)
		if err := s.repo.CreateJob(ctx, &job); err != nil {
			return fmt.Errorf("failed to create job %s: %w", job.Title, err)
		}
	}
	slog.Info("Created company", "name", company.Name, "jobs", len(sc.jobs))
	return nil
}
