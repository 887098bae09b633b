// Package models defines the Intra API resources this client decodes.
// Fields mirror the API's JSON. The API omits fields freely depending on the
// endpoint and token scope, so anything not guaranteed is a pointer or
// zero-valued when absent.
package models

import "time"

// User is an Intra user as returned by /v2/users and campus user listings.
type User struct {
	ID              int        `json:"id"`
	Login           string     `json:"login"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	DisplayName     string     `json:"displayname"`
	Kind            string     `json:"kind"`
	CorrectionPoint int        `json:"correction_point"`
	Wallet          int        `json:"wallet"`
	PoolMonth       string     `json:"pool_month"`
	PoolYear        string     `json:"pool_year"`
	Staff           bool       `json:"staff?"`
	Active          bool       `json:"active?"`
	AlumnizedAt     *time.Time `json:"alumnized_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Project is a curriculum project.
type Project struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Exam     bool   `json:"exam"`
	ParentID *int   `json:"parent_id"`
}

// ProjectsUser links a user to a project attempt, from /v2/projects_users.
type ProjectsUser struct {
	ID            int        `json:"id"`
	Occurrence    int        `json:"occurrence"`
	FinalMark     *int       `json:"final_mark"`
	Status        string     `json:"status"`
	Validated     *bool      `json:"validated?"`
	CurrentTeamID int        `json:"current_team_id"`
	Project       Project    `json:"project"`
	User          User       `json:"user"`
	MarkedAt      *time.Time `json:"marked_at"`
	RetriableAt   *time.Time `json:"retriable_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Team is a project team, from /v2/teams.
type Team struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	ProjectID     int        `json:"project_id"`
	Status        string     `json:"status"`
	FinalMark     *int       `json:"final_mark"`
	Validated     *bool      `json:"validated?"`
	Locked        bool       `json:"locked?"`
	Closed        bool       `json:"closed?"`
	LockedAt      *time.Time `json:"locked_at"`
	ClosedAt      *time.Time `json:"closed_at"`
	TerminatingAt *time.Time `json:"terminating_at"`
	Users         []TeamUser `json:"users"`
}

// TeamUser is a user's membership within a team.
type TeamUser struct {
	ID             int    `json:"id"`
	Login          string `json:"login"`
	Leader         bool   `json:"leader"`
	Occurrence     int    `json:"occurrence"`
	ProjectsUserID int    `json:"projects_user_id"`
}

// ScaleTeam is an evaluation (a "scale team"), from /v2/scale_teams.
type ScaleTeam struct {
	ID         int        `json:"id"`
	ScaleID    int        `json:"scale_id"`
	TeamID     *int       `json:"team_id"`
	Comment    *string    `json:"comment"`
	Feedback   *string    `json:"feedback"`
	FinalMark  *int       `json:"final_mark"`
	Flag       Flag       `json:"flag"`
	BeginAt    *time.Time `json:"begin_at"`
	FilledAt   *time.Time `json:"filled_at"`
	Correcteds []TeamUser `json:"correcteds"`
	Corrector  *TeamUser  `json:"corrector"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Flag categorizes an evaluation outcome (Ok, Outstanding, Cheat, ...).
type Flag struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Positive bool   `json:"positive"`
}

// Campus is a 42 campus, from /v2/campus.
type Campus struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Country    string `json:"country"`
	City       string `json:"city"`
	TimeZone   string `json:"time_zone"`
	Active     bool   `json:"active"`
	UsersCount int    `json:"users_count"`
}
