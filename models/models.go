package models

// This file serves as the central export point for all database models.
//
// Database schema overview:
// 1. users, refresh_tokens, permanent_tokens - cookie/bearer authentication
// 2. companies, jobs, saved_jobs - job browsing and bookmarks
// 3. resumes - uploaded resume files with extracted text and AI analysis (jsonb)
// 4. interviewers - seeded interviewer personas
// 5. interview_sessions - each mock interview attempt, overall feedback (jsonb)
// 6. interview_questions - ordered generated questions for a session
// 7. interview_answers - one answer per question with per-answer feedback (jsonb)
