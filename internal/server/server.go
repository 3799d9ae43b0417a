package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"anoa.com/anomologita/internal/config"
	"anoa.com/anomologita/internal/middleware"
	"anoa.com/anomologita/pkg/ratelimiter"
	"anoa.com/anomologita/pkg/storage"
	"anoa.com/anomologita/pkg/token"

	commentHttp "anoa.com/anomologita/internal/modules/comment/delivery/http"
	commentRepo "anoa.com/anomologita/internal/modules/comment/repository"
	commentService "anoa.com/anomologita/internal/modules/comment/service"

	feedHttp "anoa.com/anomologita/internal/modules/feed/delivery/http"
	feedService "anoa.com/anomologita/internal/modules/feed/service"

	postHttp "anoa.com/anomologita/internal/modules/post/delivery/http"
	postRepo "anoa.com/anomologita/internal/modules/post/repository"
	postService "anoa.com/anomologita/internal/modules/post/service"

	searchService "anoa.com/anomologita/internal/modules/search/service"

	universityHttp "anoa.com/anomologita/internal/modules/university/delivery/http"
	universityRepo "anoa.com/anomologita/internal/modules/university/repository"
	universityService "anoa.com/anomologita/internal/modules/university/service"

	userHttp "anoa.com/anomologita/internal/modules/user/delivery/http"
	userRepo "anoa.com/anomologita/internal/modules/user/repository"
	userService "anoa.com/anomologita/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const feedBuffer = 16

type Server struct {
	engine    *gin.Engine
	db        *gorm.DB
	ipLimiter *middleware.IPRateLimiter
}

// NewServer wires repositories, services and handlers. redisClient may be
// nil; cooldowns and the university cache are then disabled.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	limiter := ratelimiter.New(redisClient)

	imageStorage := newImageStorage(cfg)
	meiliSvc := newSearch(cfg)
	hub := feedService.NewHub(feedBuffer)

	userRepository := userRepo.NewUserRepository(db)
	postRepository := postRepo.NewPostRepository(db)
	universityRepository := universityRepo.NewUniversityRepository(db)
	commentRepository := commentRepo.NewCommentRepository(db)

	authSvc := userService.NewAuthService(userRepository, postRepository, universityRepository, issuer)
	authHandler := userHttp.NewAuthHandler(authSvc)

	universitySvc := universityService.NewUniversityService(universityRepository, redisClient)
	universityHandler := universityHttp.NewUniversityHandler(universitySvc)

	postSvc := postService.NewPostService(
		postRepository,
		userRepository,
		universityRepository,
		imageStorage,
		meiliSvc,
		hub,
		limiter,
		postService.Options{ImageFolder: cfg.PostImageFolder, Cooldown: cfg.RateLimitPost},
	)
	postHandler := postHttp.NewPostHandler(postSvc)

	commentSvc := commentService.NewCommentService(commentRepository, postRepository, userRepository, limiter, cfg.RateLimitComment)
	commentHandler := commentHttp.NewCommentHandler(commentSvc)

	feedHandler := feedHttp.NewFeedHandler(hub, cfg.Origins())

	router := gin.New()

	setupCORS(router, cfg.Origins())

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger("/healthz", "/metrics"))
	router.Use(middleware.Metrics())

	var ipLimiter *middleware.IPRateLimiter
	if cfg.HTTPRatePerSecond > 0 {
		ipLimiter = middleware.NewIPRateLimiter(rate.Limit(cfg.HTTPRatePerSecond), cfg.HTTPRateBurst, 2*time.Minute)
		go ipLimiter.Run(30 * time.Second)
		router.Use(ipLimiter.Handler())
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(issuer)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/refresh", authHandler.RefreshToken)
	}
	api.GET("/universities", universityHandler.GetAll)

	// The feed stream accepts the token as a query parameter
	api.GET("/posts/stream", authMiddleware.RequireStreamAuth(), authMiddleware.RequireStudent(), feedHandler.Stream)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth(), authMiddleware.RequireStudent())
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.PUT("/auth/update-university", authHandler.UpdateUniversity)
		protected.POST("/auth/logout", authHandler.Logout)

		// Post routes
		protected.POST("/posts", postHandler.CreatePost)
		protected.GET("/posts", postHandler.GetAllPosts)
		protected.GET("/posts/search", postHandler.SearchPosts)
		protected.GET("/posts/user/:userId", postHandler.GetPostsByUserID)
		protected.GET("/posts/university/:universityId", postHandler.GetPostsByUniversityID)
		protected.GET("/posts/:id", postHandler.GetPostByID)
		protected.DELETE("/posts/:id", postHandler.DeletePost)

		// Comment routes
		protected.POST("/comments", commentHandler.CreateComment)
		protected.GET("/comments/post/:postId", commentHandler.GetCommentsByPostID)
		protected.GET("/comments/:commentId", commentHandler.GetCommentByID)
		protected.DELETE("/comments/:commentId", commentHandler.DeleteComment)
	}

	admin := api.Group("/admin")
	admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAdmin())
	{
		admin.POST("/universities", universityHandler.CreateUniversity)
	}

	return &Server{
		engine:    router,
		db:        db,
		ipLimiter: ipLimiter,
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

func (s *Server) Close() {
	if s.ipLimiter != nil {
		s.ipLimiter.Stop()
	}
}

func newImageStorage(cfg *config.Config) storage.ImageStorage {
	imageStorage, err := storage.NewCloudinaryStorage(storage.Config{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	})
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			log.Error().Err(err).Msg("failed to initialize cloudinary storage")
		} else {
			log.Warn().Msg("cloudinary not configured, image uploads disabled")
		}
		return storage.Unconfigured()
	}
	return imageStorage
}

func newSearch(cfg *config.Config) searchService.MeiliSearchService {
	meiliHost := cfg.MeiliSearchHost
	if meiliHost == "" {
		log.Warn().Msg("meilisearch not configured, post search disabled")
		return searchService.Disabled()
	}
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}

	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	return searchService.NewMeiliSearchService(meiliClient)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))
}
