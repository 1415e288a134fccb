// Command seed fills the database with demo users, posts and comments.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of random users to create")
	postsPerUser := flag.Int("posts", 3, "Posts per random user")
	commentsPerPost := flag.Int("comments", 2, "Comments per random post")
	draftRatio := flag.Float64("drafts", 0.2, "Share of random posts left unpublished")
	fixtures := flag.String("fixtures", "", "YAML fixture file to load instead of random data")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, auth.NewBcryptHasher())

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var res seed.Result
	if *fixtures != "" {
		f, err := seed.LoadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("Loading fixtures failed: %v", err)
		}
		res, err = s.ApplyFixtures(ctx, f)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		res, err = s.SeedRandom(ctx, seed.Options{
			Users:           *numUsers,
			PostsPerUser:    *postsPerUser,
			CommentsPerPost: *commentsPerPost,
			DraftRatio:      *draftRatio,
		})
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	log.Printf("Seeded %d users, %d posts, %d comments", res.Users, res.Posts, res.Comments)
	if *fixtures == "" {
		log.Printf("All generated users have the password: %s", seed.DefaultPassword)
	}
}
