// Package provider is the data access facade used by every screen.
//
// Reads never wait for the network. Writes are optimistic: the cache
// changes first and the remote operation is handed to an
// outbox.Dispatcher, which either queues it durably (*outbox.Outbox) or
// sends it on a goroutine (*outbox.Direct). A failed remote write never
// reaches the caller and never rolls back the local change.
//
//	p := provider.New(c, ob, client)
//	st := p.AddStudent(model.Student{FullName: "Nguyễn Văn An", ClassID: cls.ID})
//	p.UpdateStudentXP(st.ID, 60)
package provider
