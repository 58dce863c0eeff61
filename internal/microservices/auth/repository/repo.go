package repository

import "github.com/jackc/pgx/v5/pgxpool"

type Repository struct {
	AuthRepo *AuthRepository
}

func New(db *pgxpool.Pool) *Repository {
	return &Repository{
		AuthRepo: NewAuthRepository(db),
	}
}
