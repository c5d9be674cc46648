// Package social holds the domain model and the resource operations of the app:
// accounts, posts, likes and saves over the remote boundary.
package social

import (
	"time"

	"github.com/bassista/snapgram/internal/remote"
)

const (
	UsersCollection = "users"
	PostsCollection = "posts"
	SavesCollection = "saves"
)

type User struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"imageUrl"`
	ImageID   string    `json:"imageId"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Post is owned by its creator. Likes holds user ids and never contains duplicates.
type Post struct {
	ID        string    `json:"id"`
	Creator   string    `json:"creator"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"imageUrl"`
	ImageID   string    `json:"imageId"`
	Location  string    `json:"location"`
	Tags      []string  `json:"tags"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SavedPostRecord bookmarks Post for User.
type SavedPostRecord struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Post string `json:"post"`
}

// CurrentUser is the signed-in user's profile together with its bookmarks and
// the posts it likes. Saved follows the order of Saves, minus posts that no
// longer exist.
type CurrentUser struct {
	User
	Saves []SavedPostRecord `json:"saves"`
	Saved []Post            `json:"saved"`
	Liked []Post            `json:"liked"`
}

// File is an uploaded binary attached to a form.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) upload() remote.ObjectUpload {
	return remote.ObjectUpload{Name: f.Name, ContentType: f.ContentType, Data: f.Data}
}

type NewUser struct {
	Name     string `json:"name" validate:"min=4,max=50"`
	Username string `json:"username" validate:"min=4,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=8"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewPost carries exactly one image file. Tags is the raw comma separated input.
type NewPost struct {
	UserID   string `validate:"required"`
	Caption  string `validate:"max=2200"`
	Files    []File `validate:"len=1"`
	Location string `validate:"max=100"`
	Tags     string
}

// UpdatePost replaces the image only when Files is not empty.
type UpdatePost struct {
	PostID   string `validate:"required"`
	Caption  string `validate:"max=2200"`
	ImageID  string
	ImageURL string
	Files    []File `validate:"max=1"`
	Location string `validate:"max=100"`
	Tags     string
}

type UpdateUser struct {
	UserID   string `validate:"required"`
	Name     string `validate:"min=2"`
	Bio      string
	ImageID  string
	ImageURL string
	Files    []File `validate:"max=1"`
}

func userFromDocument(doc remote.Document) (User, error) {
	var u User
	if err := remote.DecodeFields(doc.Fields, &u); err != nil {
		return User{}, err
	}
	u.ID = doc.ID
	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt
	return u, nil
}

func postFromDocument(doc remote.Document) (Post, error) {
	var p Post
	if err := remote.DecodeFields(doc.Fields, &p); err != nil {
		return Post{}, err
	}
	p.ID = doc.ID
	p.CreatedAt = doc.CreatedAt
	p.UpdatedAt = doc.UpdatedAt
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, nil
}

func saveFromDocument(doc remote.Document) (SavedPostRecord, error) {
	var s SavedPostRecord
	if err := remote.DecodeFields(doc.Fields, &s); err != nil {
		return SavedPostRecord{}, err
	}
	s.ID = doc.ID
	return s, nil
}

func postsFromDocuments(docs []remote.Document) ([]Post, error) {
	posts := make([]Post, 0, len(docs))
	for _, doc := range docs {
		p, err := postFromDocument(doc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}
