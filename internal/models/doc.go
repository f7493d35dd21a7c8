// Package models defines the domain entities of the spotstats web front end.
//
// The package contains two categories of types:
//
// 1. Spotify data: lightweight structs mapped from Web API responses
//   - [UserProfile] : The current user's account details
//   - [Track] : A track from the user's top tracks
//   - [Artist] : An artist from the user's top artists, with genres
//   - [PlaylistPage] : One page of the user's playlists and the total count
//
// 2. Session state
//   - [TokenRecord] : The OAuth2 credential bundle held by one session
//   - [Session] : A browser session with its token and pending login
//
// [ProfileSnapshot] aggregates the Spotify data for one profile page request.
// It is built fresh per request and never persisted.
package models
