// Package seed populates a database with fake users, posts and conversations
// for development and load testing.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"murmur/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configure a Seeder.
type Options struct {
	// FastHash uses the minimum bcrypt cost. Accounts still log in normally.
	FastHash bool
	// RandSeed makes runs reproducible when non-zero.
	RandSeed int64
}

// Summary counts the rows a run created.
type Summary struct {
	Users         int
	Follows       int
	Posts         int
	Likes         int
	Comments      int
	Bookmarks     int
	Conversations int
	Messages      int
}

// Seeder writes fake data through GORM.
type Seeder struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	now   time.Time
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{db: db, opts: opts, faker: gofakeit.New(seed), now: time.Now()}
}

// ClearAll deletes every seeded table, children first.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Notification{},
		&models.Message{},
		&models.Conversation{},
		&models.Bookmark{},
		&models.Like{},
		&models.Comment{},
		&models.Post{},
		&models.Follow{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run seeds a full social graph sized by p.
func (s *Seeder) Run(p Preset) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sum := &Summary{}

	users, err := s.SeedUsers(p.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	sum.Users = len(users)
	log.Printf("✓ %d users created", sum.Users)

	if sum.Follows, err = s.SeedFollows(users, p.FollowRatio); err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}
	log.Printf("✓ %d follows created", sum.Follows)

	posts, err := s.SeedPosts(users, p.PostsPerUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	sum.Posts = len(posts)
	log.Printf("✓ %d posts created", sum.Posts)

	if sum.Likes, sum.Comments, sum.Bookmarks, err = s.SeedEngagement(users, posts, p); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	log.Printf("✓ %d likes, %d comments, %d bookmarks", sum.Likes, sum.Comments, sum.Bookmarks)

	if sum.Conversations, sum.Messages, err = s.SeedConversations(users, p.Conversations, p.MessagesPerConversation); err != nil {
		return nil, fmt.Errorf("failed to create conversations: %w", err)
	}
	log.Printf("✓ %d conversations with %d messages", sum.Conversations, sum.Messages)

	return sum, nil
}

func (s *Seeder) passwordHash() (string, error) {
	cost := bcrypt.DefaultCost
	if s.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// username derives a valid, unique handle from a faker username.
func username(raw string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 20 {
			break
		}
	}
	if b.Len() < 3 {
		b.WriteString("user")
	}
	return fmt.Sprintf("%s%d", b.String(), n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}

// SeedUsers creates count users sharing DefaultPassword.
func (s *Seeder) SeedUsers(count int) ([]models.User, error) {
	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, count)
	for i := range count {
		name := username(s.faker.Username(), i+1)
		users = append(users, models.User{
			Username:  name,
			Name:      truncate(s.faker.Name(), 50),
			Email:     name + "@example.com",
			Password:  hash,
			Bio:       truncate(s.faker.Sentence(10), 160),
			Skills:    []string{s.faker.Hobby(), s.faker.Hobby()},
			Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", name),
			CreatedAt: s.pastTime(24 * 90),
		})
	}
	if err := s.db.CreateInBatches(&users, 200).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedFollows links each ordered pair of distinct users with probability ratio.
func (s *Seeder) SeedFollows(users []models.User, ratio float64) (int, error) {
	var follows []models.Follow
	for _, a := range users {
		for _, b := range users {
			if a.ID != b.ID && s.faker.Float64() < ratio {
				follows = append(follows, models.Follow{FollowerID: a.ID, FollowingID: b.ID})
			}
		}
	}
	if len(follows) == 0 {
		return 0, nil
	}
	return len(follows), s.db.CreateInBatches(&follows, 500).Error
}

// SeedPosts creates perUser posts for every user. Some carry an image.
func (s *Seeder) SeedPosts(users []models.User, perUser int) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(users)*perUser)
	for _, u := range users {
		for range perUser {
			post := models.Post{
				Content:   s.faker.Paragraph(1, s.faker.Number(1, 4), 8, " "),
				UserID:    u.ID,
				CreatedAt: s.pastTime(24 * 30),
			}
			if s.faker.Number(1, 10) <= 3 {
				url := fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID())
				post.ImageURL = &url
			}
			posts = append(posts, post)
		}
	}
	if len(posts) == 0 {
		return posts, nil
	}
	if err := s.db.CreateInBatches(&posts, 200).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// SeedEngagement adds likes, comments and bookmarks to posts.
func (s *Seeder) SeedEngagement(users []models.User, posts []models.Post, p Preset) (likes, comments, bookmarks int, err error) {
	var (
		likeRows     []models.Like
		commentRows  []models.Comment
		bookmarkRows []models.Bookmark
	)
	for _, post := range posts {
		for _, u := range users {
			if s.faker.Float64() < p.LikeRatio {
				likeRows = append(likeRows, models.Like{UserID: u.ID, PostID: post.ID})
			}
			if s.faker.Float64() < p.BookmarkRatio {
				bookmarkRows = append(bookmarkRows, models.Bookmark{UserID: u.ID, PostID: post.ID})
			}
		}
		for range p.CommentsPerPost {
			author := users[s.faker.Number(0, len(users)-1)]
			commentRows = append(commentRows, models.Comment{
				PostID:    post.ID,
				UserID:    author.ID,
				Content:   truncate(s.faker.Sentence(s.faker.Number(4, 16)), 500),
				CreatedAt: post.CreatedAt.Add(time.Duration(s.faker.Number(1, 600)) * time.Minute),
			})
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(likeRows) > 0 {
			if err := tx.CreateInBatches(&likeRows, 500).Error; err != nil {
				return err
			}
		}
		if len(commentRows) > 0 {
			if err := tx.CreateInBatches(&commentRows, 500).Error; err != nil {
				return err
			}
		}
		if len(bookmarkRows) > 0 {
			if err := tx.CreateInBatches(&bookmarkRows, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return len(likeRows), len(commentRows), len(bookmarkRows), nil
}

// SeedConversations opens up to count distinct conversations between random
// pairs and fills each with alternating messages.
func (s *Seeder) SeedConversations(users []models.User, count, perConversation int) (int, int, error) {
	if len(users) < 2 || count == 0 {
		return 0, 0, nil
	}
	maxPairs := len(users) * (len(users) - 1) / 2
	count = min(count, maxPairs)

	seen := make(map[[2]uint]bool, count)
	convs, messages := 0, 0
	for convs < count {
		a := users[s.faker.Number(0, len(users)-1)].ID
		b := users[s.faker.Number(0, len(users)-1)].ID
		if a == b {
			continue
		}
		low, high := models.ConversationPair(a, b)
		if seen[[2]uint{low, high}] {
			continue
		}
		seen[[2]uint{low, high}] = true

		start := s.pastTime(24 * 14)
		conv := models.Conversation{UserLowID: low, UserHighID: high, CreatedAt: start, UpdatedAt: start}
		if err := s.db.Create(&conv).Error; err != nil {
			return convs, messages, err
		}

		rows := make([]models.Message, 0, perConversation)
		for i := range perConversation {
			sender, receiver := low, high
			if i%2 == 1 {
				sender, receiver = high, low
			}
			rows = append(rows, models.Message{
				ConversationID: conv.ID,
				SenderID:       sender,
				ReceiverID:     receiver,
				Content:        truncate(s.faker.Sentence(s.faker.Number(3, 14)), 500),
				Seen:           i < perConversation-1,
				CreatedAt:      start.Add(time.Duration(i) * time.Minute),
			})
		}
		if len(rows) > 0 {
			if err := s.db.CreateInBatches(&rows, 500).Error; err != nil {
				return convs, messages, err
			}
			last := rows[len(rows)-1].CreatedAt
			if err := s.db.Model(&conv).Update("updated_at", last).Error; err != nil {
				return convs, messages, err
			}
		}
		convs++
		messages += len(rows)
	}
	return convs, messages, nil
}

// pastTime returns a random instant within the last hours.
func (s *Seeder) pastTime(hours int) time.Time {
	return s.now.Add(-time.Duration(s.faker.Number(1, hours*60)) * time.Minute)
}
