// Command main runs the database seeder for Murmur.
package main

import (
	"context"
	"flag"
	"log"

	"murmur/internal/bootstrap"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/seed"
)

func main() {
	preset := flag.String("preset", "default", "Seeder preset to apply (minimal, default, populated)")
	presetFile := flag.String("presets", "", "YAML file with custom presets (defaults to the built-in set)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Hash passwords with the minimum bcrypt cost")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	presets, err := seed.LoadPresetFile(*presetFile)
	if err != nil {
		log.Fatalf("Failed to load presets: %v", err)
	}
	p, err := seed.Lookup(presets, *preset)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("Applying preset %s: %d users, %d posts each, clean=%v", *preset, p.Users, p.PostsPerUser, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipEvents: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	// Production skips auto-migration at startup, so make sure the schema exists.
	if err := database.Migrate(rt.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	s := seed.NewSeeder(rt.DB, seed.Options{FastHash: *fast, RandSeed: *randSeed})
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(p)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	// Cached profiles would hide the reseeded rows.
	if rt.Redis != nil {
		if err := rt.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("⚠️  Could not flush Redis cache: %v", err)
		}
	}

	log.Printf("✨ All done! %d users, %d posts, %d messages.", sum.Users, sum.Posts, sum.Messages)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
