package provider

import (
	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// Classes returns every class.
func (p *Provider) Classes() []model.ClassInfo {
	return cache.Classes.List(p.cache)
}

// AddClass stores a new class.
func (p *Provider) AddClass(c model.ClassInfo) model.ClassInfo {
	p.ensureID(&c.ID)
	c.ClassName = nfc(c.ClassName)
	c.HomeroomTeacher = nfc(c.HomeroomTeacher)
	return create(p, cache.Classes, c)
}

func (p *Provider) UpdateClass(c model.ClassInfo) {
	c.ClassName = nfc(c.ClassName)
	c.HomeroomTeacher = nfc(c.HomeroomTeacher)
	update(p, cache.Classes, c)
}

func (p *Provider) RemoveClass(id string) {
	remove(p, cache.Classes, id)
}

// Students returns every student.
func (p *Provider) Students() []model.Student {
	return cache.Students.List(p.cache)
}

// StudentsByClass returns the students enrolled in a class.
func (p *Provider) StudentsByClass(classID string) []model.Student {
	return cache.Students.Filter(p.cache, func(s model.Student) bool {
		return s.ClassID == classID
	})
}

// AddStudent stores a new student. A student without a level starts at
// the level of its XP.
func (p *Provider) AddStudent(s model.Student) model.Student {
	p.ensureID(&s.ID)
	s.FullName = nfc(s.FullName)
	if s.Level == 0 {
		s.Level = model.LevelForXP(s.XP)
	}
	return create(p, cache.Students, s)
}

func (p *Provider) UpdateStudent(s model.Student) {
	s.FullName = nfc(s.FullName)
	update(p, cache.Students, s)
}

func (p *Provider) RemoveStudent(id string) {
	remove(p, cache.Students, id)
}

// UpdateStudentXP adds delta to a student's experience, recomputes the
// level and returns the stored record.
func (p *Provider) UpdateStudentXP(studentID string, delta int) (model.Student, error) {
	var updated model.Student
	err := p.cache.Update(func(s *cache.Snapshot) error {
		cur, ok := cache.Students.FindIn(s, studentID)
		if !ok {
			return ErrStudentNotFound
		}
		updated = cur.WithXP(delta)
		cache.Students.UpsertIn(s, updated)
		p.dispatch.Dispatch(remote.Of(cache.Students.Domain(), remote.VerbUpdate), updated, nil)
		return nil
	})
	if err != nil {
		return model.Student{}, err
	}
	return updated, nil
}

// Parents returns every parent.
func (p *Provider) Parents() []model.Parent {
	return cache.Parents.List(p.cache)
}

func (p *Provider) AddParent(pa model.Parent) model.Parent {
	p.ensureID(&pa.ID)
	pa.FullName = nfc(pa.FullName)
	return create(p, cache.Parents, pa)
}

func (p *Provider) UpdateParent(pa model.Parent) {
	pa.FullName = nfc(pa.FullName)
	update(p, cache.Parents, pa)
}

func (p *Provider) RemoveParent(id string) {
	remove(p, cache.Parents, id)
}

// Questions returns the quiz bank.
func (p *Provider) Questions() []model.Question {
	return cache.Questions.List(p.cache)
}

func (p *Provider) AddQuestion(q model.Question) model.Question {
	p.ensureID(&q.ID)
	q.Content = nfc(q.Content)
	return create(p, cache.Questions, q)
}

func (p *Provider) UpdateQuestion(q model.Question) {
	q.Content = nfc(q.Content)
	update(p, cache.Questions, q)
}

func (p *Provider) RemoveQuestion(id string) {
	remove(p, cache.Questions, id)
}
