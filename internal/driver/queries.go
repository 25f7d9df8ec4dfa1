package driver

var SchemaQueries = []string{
	"CREATE CONSTRAINT person_id IF NOT EXISTS FOR (p:Person) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT person_email IF NOT EXISTS FOR (p:Person) REQUIRE p.email IS UNIQUE",
	"CREATE CONSTRAINT family_id IF NOT EXISTS FOR (f:Family) REQUIRE f.id IS UNIQUE",
	"CREATE CONSTRAINT idem_key IF NOT EXISTS FOR (i:Idem) REQUIRE i.key IS UNIQUE",
}

const (
	GetPersonQuery = `
		MATCH (p:Person {id: $id})
		RETURN properties(p) AS person
	`

	FindPersonByEmailQuery = `
		MATCH (p:Person {email: $email})
		RETURN properties(p) AS person
		LIMIT 1
	`

	GetParentsQuery = `
		MATCH (p:Person)-[:PARENT_OF]->(:Person {id: $id})
		RETURN properties(p) AS person
		ORDER BY p.id
	`

	GetSpousesQuery = `
		MATCH (:Person {id: $id})-[:SPOUSE_OF]-(s:Person)
		RETURN DISTINCT properties(s) AS person
		ORDER BY person.id
	`

	CountParentsQuery = `
		MATCH (c:Person {id: $id})
		OPTIONAL MATCH (p:Person)-[:PARENT_OF]->(c)
		RETURN count(DISTINCT p) AS n
	`

	CountSpousesQuery = `
		MATCH (c:Person {id: $id})
		OPTIONAL MATCH (c)-[:SPOUSE_OF]-(s:Person)
		RETURN count(DISTINCT s) AS n
	`

	IsParentSiblingQuery = `
		MATCH (r:Person {id: $refId})<-[:PARENT_OF]-(p:Person)<-[:PARENT_OF]-(:Person)-[:PARENT_OF]->(u:Person {id: $candidateId})
		WHERE u <> p
		RETURN count(u) > 0 AS ok
	`

	FamilyOfQuery = `
		MATCH (:Person {id: $id})-[:MEMBER_OF]->(f:Family)
		RETURN f.id AS id
		ORDER BY f.id
		LIMIT 1
	`

	MemberRoleQuery = `
		MATCH (:Person {id: $personId})-[m:MEMBER_OF]->(:Family {id: $familyId})
		RETURN coalesce(m.role, 'ADMIN') AS role
	`

	CreatePersonQuery = `
		CREATE (p:Person {
			id: $id,
			name: $name,
			email: $email,
			gender: $gender,
			birthDate: $birthDate,
			deathDate: $deathDate,
			passwordHash: $passwordHash,
			createdAt: $createdAt,
			createdBy: $createdBy
		})
		RETURN p.id AS id
	`

	// The lock property forces concurrent writers on the same child to
	// serialize before the parent count is read.
	CreateParentBelowCapQuery = `
		MATCH (c:Person {id: $childId})
		SET c._parentLock = $id
		WITH c
		CALL {
			WITH c
			OPTIONAL MATCH (:Person)-[r:PARENT_OF]->(c)
			RETURN count(r) AS parentCount
		}
		WITH c, parentCount
		WHERE parentCount < $cap
		CREATE (p:Person {
			id: $id,
			name: $name,
			email: $email,
			gender: $gender,
			birthDate: $birthDate,
			deathDate: $deathDate,
			passwordHash: $passwordHash,
			createdAt: $createdAt,
			createdBy: $createdBy
		})
		CREATE (p)-[:PARENT_OF {createdAt: $createdAt, createdBy: $createdBy}]->(c)
		RETURN p.id AS id
	`

	MergePersonByEmailQuery = `
		MERGE (p:Person {email: $email})
		ON CREATE SET
			p.id = $id,
			p.name = $name,
			p.gender = $gender,
			p.birthDate = $birthDate,
			p.deathDate = $deathDate,
			p.passwordHash = $passwordHash,
			p.createdAt = $createdAt,
			p.createdBy = $createdBy
		RETURN properties(p) AS person, p.id = $id AS created
	`

	AddParentOfQuery = `
		MATCH (p:Person {id: $parentId}), (c:Person {id: $childId})
		MERGE (p)-[r:PARENT_OF]->(c)
		ON CREATE SET r.createdAt = $createdAt, r.createdBy = $createdBy
		RETURN count(r) AS n
	`

	AddSpousePairQuery = `
		MATCH (a:Person {id: $aId}), (b:Person {id: $bId})
		MERGE (a)-[r1:SPOUSE_OF]->(b)
		ON CREATE SET r1.createdAt = $createdAt, r1.createdBy = $createdBy
		MERGE (b)-[r2:SPOUSE_OF]->(a)
		ON CREATE SET r2.createdAt = $createdAt, r2.createdBy = $createdBy
		RETURN count(*) AS n
	`

	MarkSpouseLockQuery = `
		MATCH (p:Person {id: $id})
		SET p._spouseLock = coalesce(p._spouseLock, $marker)
		RETURN p._spouseLock AS marker
	`

	CreateFamilyQuery = `
		CREATE (f:Family {id: $id, name: $name, createdAt: $createdAt})
		RETURN f.id AS id
	`

	AttachToFamilyQuery = `
		MATCH (f:Family {id: $familyId}), (p:Person {id: $personId})
		MERGE (p)-[m:MEMBER_OF]->(f)
		ON CREATE SET m.role = $role
		RETURN count(m) AS n
	`

	EdgesTouchingQuery = `
		MATCH (a:Person)-[r:PARENT_OF|SPOUSE_OF]->(b:Person)
		WHERE a.id IN $ids OR b.id IN $ids
		RETURN type(r) AS type, a.id AS sourceId, b.id AS targetId
	`

	GetIdempotencyQuery = `
		MATCH (i:Idem {key: $key})
		WHERE i.expiresAt > $now
		RETURN i.status AS status, i.payload AS payload
	`

	// Expired records are overwritten; live ones are left untouched.
	PutIdempotencyQuery = `
		MERGE (i:Idem {key: $key})
		WITH i, (i.status IS NULL OR i.expiresAt <= $now) AS fresh
		FOREACH (_ IN CASE WHEN fresh THEN [1] ELSE [] END |
			SET i.userId = $userId,
				i.status = $status,
				i.payload = $payload,
				i.route = $route,
				i.createdAt = $now,
				i.expiresAt = $expiresAt
		)
		RETURN fresh
	`
)
