package github

import "time"

// Every upstream payload is modeled as an explicit struct at this boundary.
// Anything that fails to decode into these shapes is a validation error, not
// a silently accepted blob.

// OwnerInfo is the owner block embedded in repository payloads.
type OwnerInfo struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// License is the license block embedded in repository payloads.
type License struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Repository is the full repository payload.
type Repository struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	Owner       OwnerInfo `json:"owner"`
	HTMLURL     string    `json:"html_url"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Topics      []string  `json:"topics"`
	Language    string    `json:"language"`
	License     *License  `json:"license"`
	Fork        bool      `json:"fork"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
}

// RepoSearchResult is the payload of the repository search endpoint.
type RepoSearchResult struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []Repository `json:"items"`
}

// ContentFile is the payload of the get-content endpoint for a single file.
// When the requested path resolves to a directory the API returns an array;
// the client collapses that case into Type == "dir" with no content.
type ContentFile struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Contributor is one entry of the list-contributors endpoint.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

// CommitAuthor is the author block inside a commit payload.
type CommitAuthor struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Date  time.Time `json:"date"`
}

// CommitDetail is the nested commit object of the list-commits endpoint.
type CommitDetail struct {
	Author  CommitAuthor `json:"author"`
	Message string       `json:"message"`
}

// Commit is one entry of the list-commits endpoint.
type Commit struct {
	SHA    string       `json:"sha"`
	Commit CommitDetail `json:"commit"`
}

// RateLimitResource is one quota pool of the rate-limit introspection
// endpoint.
type RateLimitResource struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
	Used      int   `json:"used"`
}

// RateLimitInfo is the payload of the rate-limit introspection endpoint.
type RateLimitInfo struct {
	Resources struct {
		Core   RateLimitResource `json:"core"`
		Search RateLimitResource `json:"search"`
	} `json:"resources"`
}
