package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient wraps access to the Supabase project. The service talks to
// Supabase with its service key only; there is no per-user auth here.
type SupabaseClient interface {
	Initialize() error
	DB() *supabase.Client
}
