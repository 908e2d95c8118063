/*
Package persistence stores interview records with GORM.

Store implements interview.Recorder and interview.Registry over the
users, sessions, questions, answers, evaluations, confidence_metrics and
topic_mastery tables. The same schema is shipped as versioned SQL in
internal/migration; AutoMigrate is the development shortcut.

Every write error is returned as a PERSISTENCE_FAILURE types.Error. Callers
in the workflow log it and continue.
*/
package persistence
